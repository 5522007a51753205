package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/richardliu001/appointment-service/internal/model"
)

// dynamoTimeLayout has a fixed width so createdAt sorts lexically in the index.
const dynamoTimeLayout = "2006-01-02T15:04:05.000000000Z"

// DynamoAPI is the subset of the DynamoDB client used by the fast-path store.
type DynamoAPI interface {
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
}

type dynamoAppointment struct {
	ID                  string `dynamodbav:"id"`
	InsuredID           string `dynamodbav:"insuredId"`
	ScheduleID          int64  `dynamodbav:"scheduleId"`
	CountryCode         string `dynamodbav:"countryCode"`
	Status              string `dynamodbav:"status"`
	CreatedAt           string `dynamodbav:"createdAt"`
	UpdatedAt           string `dynamodbav:"updatedAt"`
	ProcessingStartedAt string `dynamodbav:"processingStartedAt,omitempty"`
	CompletedAt         string `dynamodbav:"completedAt,omitempty"`
	ErrorMessage        string `dynamodbav:"errorMessage,omitempty"`
}

// DynamoAppointmentRepository keeps the fast path in a DynamoDB table keyed by id
// with a global secondary index on (insuredId, createdAt).
type DynamoAppointmentRepository struct {
	db    DynamoAPI
	table string
	index string
}

func NewDynamoAppointmentRepository(db DynamoAPI, table, index string) *DynamoAppointmentRepository {
	return &DynamoAppointmentRepository{db: db, table: table, index: index}
}

// NewDynamoClient loads the default AWS chain; endpoint points at a local emulator when set.
func NewDynamoClient(ctx context.Context, region, endpoint string) (*dynamodb.Client, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return dynamodb.NewFromConfig(cfg, func(o *dynamodb.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	}), nil
}

func (r *DynamoAppointmentRepository) Put(ctx context.Context, a *model.Appointment) error {
	item, err := attributevalue.MarshalMap(toDynamo(a))
	if err != nil {
		return err
	}
	_, err = r.db.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.table),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(id)"),
	})
	var cfe *types.ConditionalCheckFailedException
	if errors.As(err, &cfe) {
		return ErrDuplicate
	}
	return err
}

func (r *DynamoAppointmentRepository) GetByID(ctx context.Context, id string) (*model.Appointment, error) {
	out, err := r.db.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.table),
		Key:            idKey(id),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, ErrNotFound
	}
	return fromDynamoItem(out.Item)
}

// QueryByInsuredID walks every page of the index, newest first.
func (r *DynamoAppointmentRepository) QueryByInsuredID(ctx context.Context, insuredID string) ([]model.Appointment, error) {
	p := dynamodb.NewQueryPaginator(r.db, &dynamodb.QueryInput{
		TableName:              aws.String(r.table),
		IndexName:              aws.String(r.index),
		KeyConditionExpression: aws.String("insuredId = :iid"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":iid": &types.AttributeValueMemberS{Value: insuredID},
		},
		ScanIndexForward: aws.Bool(false),
	})

	out := []model.Appointment{}
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, item := range page.Items {
			a, err := fromDynamoItem(item)
			if err != nil {
				return nil, err
			}
			out = append(out, *a)
		}
	}
	return out, nil
}

func (r *DynamoAppointmentRepository) UpdateStatus(ctx context.Context, id string, to model.Status, at time.Time, reason string) error {
	ts := at.UTC().Format(dynamoTimeLayout)
	values := map[string]types.AttributeValue{
		":pending": &types.AttributeValueMemberS{Value: string(model.StatusPending)},
		":to":      &types.AttributeValueMemberS{Value: string(to)},
		":u":       &types.AttributeValueMemberS{Value: ts},
	}
	var update string
	switch to {
	case model.StatusCompleted:
		update = "SET #st = :to, updatedAt = :u, completedAt = :u"
	case model.StatusFailed:
		update = "SET #st = :to, updatedAt = :u, errorMessage = :e"
		values[":e"] = &types.AttributeValueMemberS{Value: reason}
	default:
		return model.ErrInvalidTransition
	}

	_, err := r.db.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                           aws.String(r.table),
		Key:                                 idKey(id),
		UpdateExpression:                    aws.String(update),
		ConditionExpression:                 aws.String("#st = :pending"),
		ExpressionAttributeNames:            map[string]string{"#st": "status"},
		ExpressionAttributeValues:           values,
		ReturnValuesOnConditionCheckFailure: types.ReturnValuesOnConditionCheckFailureAllOld,
	})
	var cfe *types.ConditionalCheckFailedException
	if errors.As(err, &cfe) {
		// the old image is absent when the item never existed
		if cfe.Item == nil {
			return ErrNotFound
		}
		return ErrConditionFailed
	}
	return err
}

func idKey(id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"id": &types.AttributeValueMemberS{Value: id},
	}
}

func toDynamo(a *model.Appointment) dynamoAppointment {
	d := dynamoAppointment{
		ID:          a.ID,
		InsuredID:   a.InsuredID,
		ScheduleID:  a.ScheduleID,
		CountryCode: string(a.CountryCode),
		Status:      string(a.Status),
		CreatedAt:   a.CreatedAt.UTC().Format(dynamoTimeLayout),
		UpdatedAt:   a.UpdatedAt.UTC().Format(dynamoTimeLayout),
	}
	if a.ProcessingStartedAt != nil {
		d.ProcessingStartedAt = a.ProcessingStartedAt.UTC().Format(dynamoTimeLayout)
	}
	if a.CompletedAt != nil {
		d.CompletedAt = a.CompletedAt.UTC().Format(dynamoTimeLayout)
	}
	if a.ErrorMessage != nil {
		d.ErrorMessage = *a.ErrorMessage
	}
	return d
}

func fromDynamoItem(item map[string]types.AttributeValue) (*model.Appointment, error) {
	var d dynamoAppointment
	if err := attributevalue.UnmarshalMap(item, &d); err != nil {
		return nil, err
	}
	created, err := time.Parse(dynamoTimeLayout, d.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("appointment %s createdAt: %w", d.ID, err)
	}
	updated, err := time.Parse(dynamoTimeLayout, d.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("appointment %s updatedAt: %w", d.ID, err)
	}
	a := &model.Appointment{
		ID:          d.ID,
		InsuredID:   d.InsuredID,
		ScheduleID:  d.ScheduleID,
		CountryCode: model.CountryCode(d.CountryCode),
		Status:      model.Status(d.Status),
		CreatedAt:   created,
		UpdatedAt:   updated,
	}
	if a.ProcessingStartedAt, err = optionalTime(d.ProcessingStartedAt); err != nil {
		return nil, err
	}
	if a.CompletedAt, err = optionalTime(d.CompletedAt); err != nil {
		return nil, err
	}
	if d.ErrorMessage != "" {
		msg := d.ErrorMessage
		a.ErrorMessage = &msg
	}
	return a, nil
}

func optionalTime(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(dynamoTimeLayout, s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
