package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// DynamoDB single-table layout:
//
//	canonical stop   PK=CITY#<city>              SK=STOP#<id>
//	route mapping    PK=ROUTE#<kind>#<routeId>   SK=STOP#<stopId>
//	narration asset  PK=CANON#<id>               SK=PERSONA#<persona>
//	job              PK=JOB#<id>                 SK=METADATA  GSI1PK=JOBROUTE#<routeId> GSI1SK=<createdAt>#<id>
const metadataSK = "METADATA"

type stopItem struct {
	PK          string  `dynamodbav:"PK"`
	SK          string  `dynamodbav:"SK"`
	StopID      string  `dynamodbav:"stopId"`
	City        string  `dynamodbav:"city"`
	Title       string  `dynamodbav:"title"`
	Lat         float64 `dynamodbav:"lat"`
	Lng         float64 `dynamodbav:"lng"`
	ImageURL    *string `dynamodbav:"imageUrl,omitempty"`
	ImageSource string  `dynamodbav:"imageSource"`
	CreatedAt   string  `dynamodbav:"createdAt"`
	UpdatedAt   string  `dynamodbav:"updatedAt"`
}

type mappingItem struct {
	PK              string `dynamodbav:"PK"`
	SK              string `dynamodbav:"SK"`
	RouteKind       string `dynamodbav:"routeKind"`
	RouteID         string `dynamodbav:"routeId"`
	StopID          string `dynamodbav:"stopId"`
	CanonicalStopID string `dynamodbav:"canonicalStopId"`
	Position        int    `dynamodbav:"position"`
	UpdatedAt       string `dynamodbav:"updatedAt"`
}

type assetItem struct {
	PK              string  `dynamodbav:"PK"`
	SK              string  `dynamodbav:"SK"`
	CanonicalStopID string  `dynamodbav:"canonicalStopId"`
	Persona         string  `dynamodbav:"persona"`
	Script          *string `dynamodbav:"script,omitempty"`
	AudioURL        *string `dynamodbav:"audioUrl,omitempty"`
	Status          string  `dynamodbav:"status"`
	ErrorMessage    *string `dynamodbav:"errorMessage,omitempty"`
	UpdatedAt       string  `dynamodbav:"updatedAt"`
}

type jobItem struct {
	PK           string  `dynamodbav:"PK"`
	SK           string  `dynamodbav:"SK"`
	GSI1PK       string  `dynamodbav:"GSI1PK"`
	GSI1SK       string  `dynamodbav:"GSI1SK"`
	JobID        string  `dynamodbav:"jobId"`
	RouteKind    string  `dynamodbav:"routeKind"`
	RouteID      string  `dynamodbav:"routeId"`
	Status       string  `dynamodbav:"status"`
	Progress     int     `dynamodbav:"progress"`
	StageMessage string  `dynamodbav:"stageMessage"`
	ErrorMessage *string `dynamodbav:"errorMessage,omitempty"`
	CreatedAt    string  `dynamodbav:"createdAt"`
	UpdatedAt    string  `dynamodbav:"updatedAt"`
}

// DynamoStore implements Store on a single DynamoDB table.
type DynamoStore struct {
	client    *dynamodb.Client
	tableName string
	now       func() time.Time
}

// NewDynamoStore creates a DynamoDB store.
func NewDynamoStore(client *dynamodb.Client, tableName string) *DynamoStore {
	return &DynamoStore{
		client:    client,
		tableName: tableName,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func cityPK(city string) string { return "CITY#" + strings.ToLower(city) }
func stopSK(id string) string    { return "STOP#" + id }
func routePK(kind RouteKind, routeID string) string {
	return "ROUTE#" + string(kind) + "#" + routeID
}
func canonPK(id string) string        { return "CANON#" + id }
func personaSK(persona string) string { return "PERSONA#" + persona }
func jobPK(id string) string          { return "JOB#" + id }
func jobRoutePK(routeID string) string {
	return "JOBROUTE#" + routeID
}

func itemKey(pk, sk string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: pk},
		"SK": &types.AttributeValueMemberS{Value: sk},
	}
}

func formatTime(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

func isConditionFailed(err error) bool {
	var ccf *types.ConditionalCheckFailedException
	return errors.As(err, &ccf)
}

func (s *DynamoStore) GetCanonicalStop(ctx context.Context, city, id string) (*CanonicalStop, error) {
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: &s.tableName,
		Key:       itemKey(cityPK(city), stopSK(id)),
	})
	if err != nil {
		return nil, fmt.Errorf("get canonical stop: %w", err)
	}
	if result.Item == nil {
		return nil, nil
	}
	var item stopItem
	if err := attributevalue.UnmarshalMap(result.Item, &item); err != nil {
		return nil, fmt.Errorf("unmarshal canonical stop: %w", err)
	}
	stop := item.toModel()
	return &stop, nil
}

func (s *DynamoStore) ListCanonicalStops(ctx context.Context, city string) ([]CanonicalStop, error) {
	var out []CanonicalStop
	err := s.queryAll(ctx, &dynamodb.QueryInput{
		TableName:              &s.tableName,
		KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :prefix)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":     &types.AttributeValueMemberS{Value: cityPK(city)},
			":prefix": &types.AttributeValueMemberS{Value: "STOP#"},
		},
	}, func(av map[string]types.AttributeValue) (bool, error) {
		var item stopItem
		if err := attributevalue.UnmarshalMap(av, &item); err != nil {
			return false, fmt.Errorf("unmarshal canonical stop: %w", err)
		}
		out = append(out, item.toModel())
		return true, nil
	})
	if err != nil {
		return nil, fmt.Errorf("list canonical stops: %w", err)
	}
	return out, nil
}

func (s *DynamoStore) InsertCanonicalStop(ctx context.Context, stop CanonicalStop) (*CanonicalStop, error) {
	stop = normalizeStop(stop)
	now := s.now()
	stop.CreatedAt, stop.UpdatedAt = now, now
	item := stopItem{
		PK:          cityPK(stop.City),
		SK:          stopSK(stop.ID),
		StopID:      stop.ID,
		City:        stop.City,
		Title:       stop.Title,
		Lat:         stop.Lat,
		Lng:         stop.Lng,
		ImageURL:    stop.ImageURL,
		ImageSource: string(stop.ImageSource),
		CreatedAt:   formatTime(now),
		UpdatedAt:   formatTime(now),
	}
	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return nil, fmt.Errorf("marshal canonical stop: %w", err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           &s.tableName,
		Item:                av,
		ConditionExpression: aws.String("attribute_not_exists(PK)"),
	})
	if isConditionFailed(err) {
		existing, getErr := s.GetCanonicalStop(ctx, stop.City, stop.ID)
		if getErr != nil {
			return nil, getErr
		}
		if existing != nil {
			return existing, nil
		}
	}
	if err != nil {
		return nil, fmt.Errorf("put canonical stop: %w", err)
	}
	return &stop, nil
}

func (s *DynamoStore) UpdateCanonicalStop(ctx context.Context, stop CanonicalStop) error {
	stop = normalizeStop(stop)
	updateExpr := "SET title = :title, lat = :lat, lng = :lng, imageSource = :src, updatedAt = :now"
	values := map[string]types.AttributeValue{
		":title": &types.AttributeValueMemberS{Value: stop.Title},
		":lat":   &types.AttributeValueMemberN{Value: strconv.FormatFloat(stop.Lat, 'f', -1, 64)},
		":lng":   &types.AttributeValueMemberN{Value: strconv.FormatFloat(stop.Lng, 'f', -1, 64)},
		":src":   &types.AttributeValueMemberS{Value: string(stop.ImageSource)},
		":now":   &types.AttributeValueMemberS{Value: formatTime(s.now())},
	}
	if stop.ImageURL != nil {
		updateExpr += ", imageUrl = :img"
		values[":img"] = &types.AttributeValueMemberS{Value: *stop.ImageURL}
	} else {
		updateExpr += " REMOVE imageUrl"
	}

	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 &s.tableName,
		Key:                       itemKey(cityPK(stop.City), stopSK(stop.ID)),
		UpdateExpression:          aws.String(updateExpr),
		ConditionExpression:       aws.String("attribute_exists(PK)"),
		ExpressionAttributeValues: values,
	})
	if isConditionFailed(err) {
		return fmt.Errorf("canonical stop %s: %w", stop.ID, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("update canonical stop: %w", err)
	}
	return nil
}

func (s *DynamoStore) UpsertRouteStop(ctx context.Context, m RouteStopMapping) error {
	item := mappingItem{
		PK:              routePK(m.RouteKind, m.RouteID),
		SK:              stopSK(m.StopID),
		RouteKind:       string(m.RouteKind),
		RouteID:         m.RouteID,
		StopID:          m.StopID,
		CanonicalStopID: m.CanonicalStopID,
		Position:        m.Position,
		UpdatedAt:       formatTime(s.now()),
	}
	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("marshal route stop: %w", err)
	}
	if _, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{TableName: &s.tableName, Item: av}); err != nil {
		return fmt.Errorf("put route stop: %w", err)
	}
	return nil
}

func (s *DynamoStore) ListRouteStops(ctx context.Context, kind RouteKind, routeID string) ([]RouteStopMapping, error) {
	var out []RouteStopMapping
	err := s.queryAll(ctx, &dynamodb.QueryInput{
		TableName:              &s.tableName,
		KeyConditionExpression: aws.String("PK = :pk"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: routePK(kind, routeID)},
		},
	}, func(av map[string]types.AttributeValue) (bool, error) {
		var item mappingItem
		if err := attributevalue.UnmarshalMap(av, &item); err != nil {
			return false, fmt.Errorf("unmarshal route stop: %w", err)
		}
		out = append(out, RouteStopMapping{
			RouteKind:       RouteKind(item.RouteKind),
			RouteID:         item.RouteID,
			StopID:          item.StopID,
			CanonicalStopID: item.CanonicalStopID,
			Position:        item.Position,
			UpdatedAt:       parseTime(item.UpdatedAt),
		})
		return true, nil
	})
	if err != nil {
		return nil, fmt.Errorf("list route stops: %w", err)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

func (s *DynamoStore) GetAsset(ctx context.Context, canonicalStopID, persona string) (*NarrationAsset, error) {
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: &s.tableName,
		Key:       itemKey(canonPK(canonicalStopID), personaSK(persona)),
	})
	if err != nil {
		return nil, fmt.Errorf("get narration asset: %w", err)
	}
	if result.Item == nil {
		return nil, nil
	}
	var item assetItem
	if err := attributevalue.UnmarshalMap(result.Item, &item); err != nil {
		return nil, fmt.Errorf("unmarshal narration asset: %w", err)
	}
	a := normalizeAsset(NarrationAsset{
		CanonicalStopID: item.CanonicalStopID,
		Persona:         item.Persona,
		Script:          item.Script,
		AudioURL:        item.AudioURL,
		Status:          AssetStatus(item.Status),
		Error:           item.ErrorMessage,
		UpdatedAt:       parseTime(item.UpdatedAt),
	})
	return &a, nil
}

func (s *DynamoStore) UpsertAsset(ctx context.Context, a NarrationAsset) error {
	a = normalizeAsset(a)
	item := assetItem{
		PK:              canonPK(a.CanonicalStopID),
		SK:              personaSK(a.Persona),
		CanonicalStopID: a.CanonicalStopID,
		Persona:         a.Persona,
		Script:          a.Script,
		AudioURL:        a.AudioURL,
		Status:          string(a.Status),
		ErrorMessage:    a.Error,
		UpdatedAt:       formatTime(s.now()),
	}
	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("marshal narration asset: %w", err)
	}
	if _, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{TableName: &s.tableName, Item: av}); err != nil {
		return fmt.Errorf("put narration asset: %w", err)
	}
	return nil
}

// CreateJob inserts a new job record.
func (s *DynamoStore) CreateJob(ctx context.Context, job GenerationJob) error {
	job = normalizeJob(job)
	now := formatTime(s.now())
	item := jobItem{
		PK:           jobPK(job.ID),
		SK:           metadataSK,
		GSI1PK:       jobRoutePK(job.RouteID),
		GSI1SK:       now + "#" + job.ID,
		JobID:        job.ID,
		RouteKind:    string(job.RouteKind),
		RouteID:      job.RouteID,
		Status:       string(job.Status),
		Progress:     job.Progress,
		StageMessage: job.Message,
		ErrorMessage: job.Error,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("marshal job item: %w", err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           &s.tableName,
		Item:                av,
		ConditionExpression: aws.String("attribute_not_exists(PK)"),
	})
	if err != nil {
		return fmt.Errorf("put job item: %w", err)
	}
	return nil
}

// UpdateJob updates status, progress and stage message of a running job.
func (s *DynamoStore) UpdateJob(ctx context.Context, id string, status JobStatus, message string, progress int) error {
	return s.updateRunningJob(ctx, id,
		"SET #status = :status, progress = :pct, stageMessage = :msg, updatedAt = :now",
		map[string]types.AttributeValue{
			":status": &types.AttributeValueMemberS{Value: string(status)},
			":pct":    &types.AttributeValueMemberN{Value: strconv.Itoa(progress)},
			":msg":    &types.AttributeValueMemberS{Value: message},
		})
}

// FinishJob moves the job into a terminal status.
func (s *DynamoStore) FinishJob(ctx context.Context, id string, status JobStatus, message string, errMsg *string) error {
	updateExpr := "SET #status = :status, stageMessage = :msg, updatedAt = :now"
	values := map[string]types.AttributeValue{
		":status": &types.AttributeValueMemberS{Value: string(status)},
		":msg":    &types.AttributeValueMemberS{Value: message},
	}
	if status != JobFailed {
		updateExpr += ", progress = :pct"
		values[":pct"] = &types.AttributeValueMemberN{Value: "100"}
	}
	if e := NormalizePtr(errMsg); e != nil {
		updateExpr += ", errorMessage = :err"
		values[":err"] = &types.AttributeValueMemberS{Value: *e}
	} else {
		updateExpr += " REMOVE errorMessage"
	}
	return s.updateRunningJob(ctx, id, updateExpr, values)
}

func (s *DynamoStore) updateRunningJob(ctx context.Context, id, updateExpr string, values map[string]types.AttributeValue) error {
	values[":now"] = &types.AttributeValueMemberS{Value: formatTime(s.now())}
	values[":ready"] = &types.AttributeValueMemberS{Value: string(JobReady)}
	values[":warn"] = &types.AttributeValueMemberS{Value: string(JobReadyWithWarnings)}
	values[":failed"] = &types.AttributeValueMemberS{Value: string(JobFailed)}

	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:        &s.tableName,
		Key:              itemKey(jobPK(id), metadataSK),
		UpdateExpression: aws.String(updateExpr),
		ConditionExpression: aws.String(
			"attribute_exists(PK) AND NOT (#status IN (:ready, :warn, :failed))"),
		ExpressionAttributeNames: map[string]string{
			"#status": "status",
		},
		ExpressionAttributeValues: values,
	})
	if isConditionFailed(err) {
		job, getErr := s.GetJob(ctx, id)
		if getErr != nil {
			return getErr
		}
		if job == nil {
			return fmt.Errorf("job %s: %w", id, ErrNotFound)
		}
		return fmt.Errorf("job %s: %w", id, ErrJobTerminal)
	}
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	return nil
}

// GetJob retrieves a single job by ID.
func (s *DynamoStore) GetJob(ctx context.Context, id string) (*GenerationJob, error) {
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: &s.tableName,
		Key:       itemKey(jobPK(id), metadataSK),
	})
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	if result.Item == nil {
		return nil, nil
	}
	var item jobItem
	if err := attributevalue.UnmarshalMap(result.Item, &item); err != nil {
		return nil, fmt.Errorf("unmarshal job: %w", err)
	}
	job := item.toModel()
	return &job, nil
}

// FindActiveJob walks a route's jobs newest first via GSI1.
func (s *DynamoStore) FindActiveJob(ctx context.Context, routeID string) (*GenerationJob, error) {
	var found *GenerationJob
	err := s.queryAll(ctx, &dynamodb.QueryInput{
		TableName:              &s.tableName,
		IndexName:              aws.String("GSI1"),
		KeyConditionExpression: aws.String("GSI1PK = :pk"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: jobRoutePK(routeID)},
		},
		ScanIndexForward: aws.Bool(false),
	}, func(av map[string]types.AttributeValue) (bool, error) {
		var item jobItem
		if err := attributevalue.UnmarshalMap(av, &item); err != nil {
			return false, fmt.Errorf("unmarshal job: %w", err)
		}
		if JobStatus(item.Status).Terminal() {
			return true, nil
		}
		job := item.toModel()
		found = &job
		return false, nil
	})
	if err != nil {
		return nil, fmt.Errorf("find active job: %w", err)
	}
	return found, nil
}

func (s *DynamoStore) Close() error { return nil }

// queryAll pages through a query until fn returns false or items run out.
func (s *DynamoStore) queryAll(ctx context.Context, input *dynamodb.QueryInput, fn func(map[string]types.AttributeValue) (bool, error)) error {
	for {
		result, err := s.client.Query(ctx, input)
		if err != nil {
			return err
		}
		for _, av := range result.Items {
			more, err := fn(av)
			if err != nil {
				return err
			}
			if !more {
				return nil
			}
		}
		if len(result.LastEvaluatedKey) == 0 {
			return nil
		}
		input.ExclusiveStartKey = result.LastEvaluatedKey
	}
}

func (i stopItem) toModel() CanonicalStop {
	return normalizeStop(CanonicalStop{
		ID:          i.StopID,
		City:        i.City,
		Title:       i.Title,
		Lat:         i.Lat,
		Lng:         i.Lng,
		ImageURL:    i.ImageURL,
		ImageSource: ImageSource(i.ImageSource),
		CreatedAt:   parseTime(i.CreatedAt),
		UpdatedAt:   parseTime(i.UpdatedAt),
	})
}

func (i jobItem) toModel() GenerationJob {
	return normalizeJob(GenerationJob{
		ID:        i.JobID,
		RouteKind: RouteKind(i.RouteKind),
		RouteID:   i.RouteID,
		Status:    JobStatus(i.Status),
		Progress:  i.Progress,
		Message:   i.StageMessage,
		Error:     i.ErrorMessage,
		CreatedAt: parseTime(i.CreatedAt),
		UpdatedAt: parseTime(i.UpdatedAt),
	})
}

var _ Store = (*DynamoStore)(nil)
