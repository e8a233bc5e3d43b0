package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormLogger "gorm.io/gorm/logger"
)

type canonicalStopRow struct {
	ID          string  `gorm:"column:id;primaryKey;type:varchar(64)"`
	City        string  `gorm:"column:city;type:varchar(128);index;not null"`
	Title       string  `gorm:"column:title;not null"`
	Lat         float64 `gorm:"column:lat;not null"`
	Lng         float64 `gorm:"column:lng;not null"`
	ImageURL    *string `gorm:"column:image_url"`
	ImageSource string  `gorm:"column:image_source;type:varchar(32);not null"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (canonicalStopRow) TableName() string { return "canonical_stops" }

type routeStopRow struct {
	RouteKind       string `gorm:"column:route_kind;primaryKey;type:varchar(16)"`
	RouteID         string `gorm:"column:route_id;primaryKey;type:varchar(128)"`
	StopID          string `gorm:"column:stop_id;primaryKey;type:varchar(128)"`
	CanonicalStopID string `gorm:"column:canonical_stop_id;type:varchar(64);index;not null"`
	Position        int    `gorm:"column:position;not null"`
	UpdatedAt       time.Time
}

func (routeStopRow) TableName() string { return "route_stop_mappings" }

type narrationAssetRow struct {
	CanonicalStopID string  `gorm:"column:canonical_stop_id;primaryKey;type:varchar(64)"`
	Persona         string  `gorm:"column:persona;primaryKey;type:varchar(32)"`
	Script          *string `gorm:"column:script"`
	AudioURL        *string `gorm:"column:audio_url"`
	Status          string  `gorm:"column:status;type:varchar(16);not null"`
	Error           *string `gorm:"column:error"`
	UpdatedAt       time.Time
}

func (narrationAssetRow) TableName() string { return "narration_assets" }

type generationJobRow struct {
	ID        string  `gorm:"column:id;primaryKey;type:varchar(32)"`
	RouteKind string  `gorm:"column:route_kind;type:varchar(16);not null"`
	RouteID   string  `gorm:"column:route_id;type:varchar(128);index;not null"`
	Status    string  `gorm:"column:status;type:varchar(32);not null"`
	Progress  int     `gorm:"column:progress;not null"`
	Message   string  `gorm:"column:message"`
	Error     *string `gorm:"column:error"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (generationJobRow) TableName() string { return "generation_jobs" }

var terminalStatuses = []string{string(JobReady), string(JobReadyWithWarnings), string(JobFailed)}

// SQLStore implements Store on a relational database through gorm.
type SQLStore struct {
	db *gorm.DB
}

// NewSQLStore wraps an open gorm handle.
func NewSQLStore(db *gorm.DB) *SQLStore {
	return &SQLStore{db: db}
}

// OpenSQL opens a postgres or sqlite database and migrates the narration tables.
func OpenSQL(driver, dsn string) (*SQLStore, error) {
	var dialector gorm.Dialector
	switch driver {
	case "postgres":
		dialector = postgres.Open(dsn)
	case "sqlite":
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unknown sql driver %q: choose postgres or sqlite", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormLogger.Default.LogMode(gormLogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}

	s := NewSQLStore(db)
	if err := s.Migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Migrate creates or updates the narration tables.
func (s *SQLStore) Migrate() error {
	if err := s.db.AutoMigrate(&canonicalStopRow{}, &routeStopRow{}, &narrationAssetRow{}, &generationJobRow{}); err != nil {
		return fmt.Errorf("migrate narration tables: %w", err)
	}
	return nil
}

func (s *SQLStore) GetCanonicalStop(ctx context.Context, city, id string) (*CanonicalStop, error) {
	var row canonicalStopRow
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get canonical stop: %w", err)
	}
	stop := row.toModel()
	return &stop, nil
}

func (s *SQLStore) ListCanonicalStops(ctx context.Context, city string) ([]CanonicalStop, error) {
	var rows []canonicalStopRow
	if err := s.db.WithContext(ctx).Where("city = ?", city).Order("id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list canonical stops: %w", err)
	}
	out := make([]CanonicalStop, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toModel())
	}
	return out, nil
}

func (s *SQLStore) InsertCanonicalStop(ctx context.Context, stop CanonicalStop) (*CanonicalStop, error) {
	stop = normalizeStop(stop)
	row := canonicalStopRow{
		ID:          stop.ID,
		City:        stop.City,
		Title:       stop.Title,
		Lat:         stop.Lat,
		Lng:         stop.Lng,
		ImageURL:    stop.ImageURL,
		ImageSource: string(stop.ImageSource),
	}
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
	if res.Error != nil {
		return nil, fmt.Errorf("insert canonical stop: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		existing, err := s.GetCanonicalStop(ctx, stop.City, stop.ID)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return existing, nil
		}
	}
	out := row.toModel()
	return &out, nil
}

func (s *SQLStore) UpdateCanonicalStop(ctx context.Context, stop CanonicalStop) error {
	stop = normalizeStop(stop)
	res := s.db.WithContext(ctx).Model(&canonicalStopRow{}).Where("id = ?", stop.ID).Updates(map[string]any{
		"city":         stop.City,
		"title":        stop.Title,
		"lat":          stop.Lat,
		"lng":          stop.Lng,
		"image_url":    stop.ImageURL,
		"image_source": string(stop.ImageSource),
		"updated_at":   time.Now().UTC(),
	})
	if res.Error != nil {
		return fmt.Errorf("update canonical stop: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("canonical stop %s: %w", stop.ID, ErrNotFound)
	}
	return nil
}

func (s *SQLStore) UpsertRouteStop(ctx context.Context, m RouteStopMapping) error {
	row := routeStopRow{
		RouteKind:       string(m.RouteKind),
		RouteID:         m.RouteID,
		StopID:          m.StopID,
		CanonicalStopID: m.CanonicalStopID,
		Position:        m.Position,
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "route_kind"}, {Name: "route_id"}, {Name: "stop_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"canonical_stop_id", "position", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("upsert route stop: %w", err)
	}
	return nil
}

func (s *SQLStore) ListRouteStops(ctx context.Context, kind RouteKind, routeID string) ([]RouteStopMapping, error) {
	var rows []routeStopRow
	err := s.db.WithContext(ctx).
		Where("route_kind = ? AND route_id = ?", string(kind), routeID).
		Order("position").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list route stops: %w", err)
	}
	out := make([]RouteStopMapping, 0, len(rows))
	for _, r := range rows {
		out = append(out, RouteStopMapping{
			RouteKind:       RouteKind(r.RouteKind),
			RouteID:         r.RouteID,
			StopID:          r.StopID,
			CanonicalStopID: r.CanonicalStopID,
			Position:        r.Position,
			UpdatedAt:       r.UpdatedAt,
		})
	}
	return out, nil
}

func (s *SQLStore) GetAsset(ctx context.Context, canonicalStopID, persona string) (*NarrationAsset, error) {
	var row narrationAssetRow
	err := s.db.WithContext(ctx).
		Where("canonical_stop_id = ? AND persona = ?", canonicalStopID, persona).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get narration asset: %w", err)
	}
	a := normalizeAsset(NarrationAsset{
		CanonicalStopID: row.CanonicalStopID,
		Persona:         row.Persona,
		Script:          row.Script,
		AudioURL:        row.AudioURL,
		Status:          AssetStatus(row.Status),
		Error:           row.Error,
		UpdatedAt:       row.UpdatedAt,
	})
	return &a, nil
}

func (s *SQLStore) UpsertAsset(ctx context.Context, a NarrationAsset) error {
	a = normalizeAsset(a)
	row := narrationAssetRow{
		CanonicalStopID: a.CanonicalStopID,
		Persona:         a.Persona,
		Script:          a.Script,
		AudioURL:        a.AudioURL,
		Status:          string(a.Status),
		Error:           a.Error,
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "canonical_stop_id"}, {Name: "persona"}},
		DoUpdates: clause.AssignmentColumns([]string{"script", "audio_url", "status", "error", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("upsert narration asset: %w", err)
	}
	return nil
}

func (s *SQLStore) CreateJob(ctx context.Context, job GenerationJob) error {
	job = normalizeJob(job)
	row := generationJobRow{
		ID:        job.ID,
		RouteKind: string(job.RouteKind),
		RouteID:   job.RouteID,
		Status:    string(job.Status),
		Progress:  job.Progress,
		Message:   job.Message,
		Error:     job.Error,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("create job: %w", err)
	}
	return nil
}

func (s *SQLStore) UpdateJob(ctx context.Context, id string, status JobStatus, message string, progress int) error {
	return s.updateRunningJob(ctx, id, map[string]any{
		"status":     string(status),
		"message":    message,
		"progress":   progress,
		"updated_at": time.Now().UTC(),
	})
}

func (s *SQLStore) FinishJob(ctx context.Context, id string, status JobStatus, message string, errMsg *string) error {
	fields := map[string]any{
		"status":     string(status),
		"message":    message,
		"error":      NormalizePtr(errMsg),
		"updated_at": time.Now().UTC(),
	}
	if status != JobFailed {
		fields["progress"] = 100
	}
	return s.updateRunningJob(ctx, id, fields)
}

func (s *SQLStore) updateRunningJob(ctx context.Context, id string, fields map[string]any) error {
	res := s.db.WithContext(ctx).Model(&generationJobRow{}).
		Where("id = ? AND status NOT IN ?", id, terminalStatuses).
		Updates(fields)
	if res.Error != nil {
		return fmt.Errorf("update job: %w", res.Error)
	}
	if res.RowsAffected > 0 {
		return nil
	}
	job, err := s.GetJob(ctx, id)
	if err != nil {
		return err
	}
	if job == nil {
		return fmt.Errorf("job %s: %w", id, ErrNotFound)
	}
	return fmt.Errorf("job %s: %w", id, ErrJobTerminal)
}

func (s *SQLStore) GetJob(ctx context.Context, id string) (*GenerationJob, error) {
	var row generationJobRow
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	job := row.toModel()
	return &job, nil
}

func (s *SQLStore) FindActiveJob(ctx context.Context, routeID string) (*GenerationJob, error) {
	var rows []generationJobRow
	err := s.db.WithContext(ctx).
		Where("route_id = ? AND status NOT IN ?", routeID, terminalStatuses).
		Order("created_at DESC").
		Limit(1).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("find active job: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	job := rows[0].toModel()
	return &job, nil
}

func (s *SQLStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (r canonicalStopRow) toModel() CanonicalStop {
	return normalizeStop(CanonicalStop{
		ID:          r.ID,
		City:        r.City,
		Title:       r.Title,
		Lat:         r.Lat,
		Lng:         r.Lng,
		ImageURL:    r.ImageURL,
		ImageSource: ImageSource(r.ImageSource),
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	})
}

func (r generationJobRow) toModel() GenerationJob {
	return normalizeJob(GenerationJob{
		ID:        r.ID,
		RouteKind: RouteKind(r.RouteKind),
		RouteID:   r.RouteID,
		Status:    JobStatus(r.Status),
		Progress:  r.Progress,
		Message:   r.Message,
		Error:     r.Error,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	})
}

var _ Store = (*SQLStore)(nil)
