package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/nextai/nextai/internal/models"
	"github.com/sirupsen/logrus"
)

// verifyCondition accepts a record only if it exists, is unused, has not
// expired and carries the submitted code. Check and mark happen in the same
// UpdateItem call.
const verifyCondition = "attribute_exists(PK) AND #used = :unused AND #expires_ns >= :now_ns AND #code = :code"

type VerificationCodeRepository struct {
	client    DynamoAPI
	tableName string
	expiry    time.Duration
	retention time.Duration
	logger    *logrus.Logger
	now       func() time.Time
}

func NewVerificationCodeRepository(client DynamoAPI, tableName string, expiry, retention time.Duration, logger *logrus.Logger) *VerificationCodeRepository {
	return &VerificationCodeRepository{
		client:    client,
		tableName: tableName,
		expiry:    expiry,
		retention: retention,
		logger:    logger,
		now:       time.Now,
	}
}

// WithClock replaces the time source.
func (r *VerificationCodeRepository) WithClock(now func() time.Time) *VerificationCodeRepository {
	r.now = now
	return r
}

func verificationKey(email string) map[string]types.AttributeValue {
	record := models.VerificationCode{Email: models.NormalizeEmail(email)}
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: record.GetPK()},
		"SK": &types.AttributeValueMemberS{Value: record.GetSK()},
	}
}

// Issue writes the code for email, replacing any earlier record.
func (r *VerificationCodeRepository) Issue(ctx context.Context, email, code string) error {
	now := r.now()
	record := models.VerificationCode{
		Email:     models.NormalizeEmail(email),
		Code:      code,
		CreatedAt: now,
		ExpiresAt: now.Add(r.expiry),
		Used:      false,
	}

	item, err := attributevalue.MarshalMap(record)
	if err != nil {
		return fmt.Errorf("failed to marshal verification code: %w", err)
	}

	// TTL lets DynamoDB reap stale records after the retention window.
	ttl := record.ExpiresAt.Add(r.retention).Unix()

	item["PK"] = &types.AttributeValueMemberS{Value: record.GetPK()}
	item["SK"] = &types.AttributeValueMemberS{Value: record.GetSK()}
	item["expires_at_ns"] = &types.AttributeValueMemberN{Value: strconv.FormatInt(record.ExpiresAt.UnixNano(), 10)}
	item["TTL"] = &types.AttributeValueMemberN{Value: strconv.FormatInt(ttl, 10)}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})

	if err != nil {
		r.logger.WithError(err).Error("Failed to store verification code in DynamoDB")
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	return nil
}

// Verify consumes the code for email. Failures are classified from the
// record as it stood when the condition was evaluated.
func (r *VerificationCodeRepository) Verify(ctx context.Context, email, code string) error {
	now := r.now()

	_, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(r.tableName),
		Key:                 verificationKey(email),
		UpdateExpression:    aws.String("SET #used = :used, #used_at = :used_at"),
		ConditionExpression: aws.String(verifyCondition),
		ExpressionAttributeNames: map[string]string{
			"#used":       "used",
			"#used_at":    "used_at",
			"#expires_ns": "expires_at_ns",
			"#code":       "code",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":unused":  &types.AttributeValueMemberBOOL{Value: false},
			":used":    &types.AttributeValueMemberBOOL{Value: true},
			":now_ns":  &types.AttributeValueMemberN{Value: strconv.FormatInt(now.UnixNano(), 10)},
			":code":    &types.AttributeValueMemberS{Value: code},
			":used_at": &types.AttributeValueMemberS{Value: now.UTC().Format(time.RFC3339)},
		},
		ReturnValuesOnConditionCheckFailure: types.ReturnValuesOnConditionCheckFailureAllOld,
	})

	if err == nil {
		return nil
	}

	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		return classifyVerification(ccf.Item, code, now)
	}

	r.logger.WithError(err).Error("Failed to verify code in DynamoDB")
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}

// Get returns the current record for email.
func (r *VerificationCodeRepository) Get(ctx context.Context, email string) (*models.VerificationCode, error) {
	result, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       verificationKey(email),
	})

	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	if result.Item == nil {
		return nil, ErrCodeNotFound
	}

	var record models.VerificationCode
	if err := attributevalue.UnmarshalMap(result.Item, &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal verification code: %w", err)
	}

	return &record, nil
}

func classifyVerification(item map[string]types.AttributeValue, code string, now time.Time) error {
	if len(item) == 0 {
		return ErrCodeNotFound
	}

	var record models.VerificationCode
	if err := attributevalue.UnmarshalMap(item, &record); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	if record.Used {
		return ErrCodeAlreadyUsed
	}

	expiresNs := record.ExpiresAt.UnixNano()
	if attr, ok := item["expires_at_ns"].(*types.AttributeValueMemberN); ok {
		if parsed, err := strconv.ParseInt(attr.Value, 10, 64); err == nil {
			expiresNs = parsed
		}
	}
	if now.UnixNano() > expiresNs {
		return ErrCodeExpired
	}

	if record.Code != code {
		return ErrCodeMismatch
	}

	return fmt.Errorf("%w: condition failed on an acceptable record", ErrStoreUnavailable)
}
