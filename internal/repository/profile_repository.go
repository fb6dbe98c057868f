package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/nextai/nextai/internal/models"
	"github.com/sirupsen/logrus"
)

const (
	profileSK   = "PROFILE"
	financialSK = "FINANCIAL"
)

// ProfileRepository stores the sign-up profile and the financial intake
// under the user's partition.
type ProfileRepository struct {
	client    DynamoAPI
	tableName string
	logger    *logrus.Logger
}

func NewProfileRepository(client DynamoAPI, tableName string, logger *logrus.Logger) *ProfileRepository {
	return &ProfileRepository{
		client:    client,
		tableName: tableName,
		logger:    logger,
	}
}

func userKey(userID, sk string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: models.UserPK(userID)},
		"SK": &types.AttributeValueMemberS{Value: sk},
	}
}

func (r *ProfileRepository) SaveProfile(ctx context.Context, profile *models.UserProfile) error {
	now := time.Now().UTC()
	if profile.CreatedAt.IsZero() {
		profile.CreatedAt = now
	}
	profile.UpdatedAt = now

	item, err := attributevalue.MarshalMap(profile)
	if err != nil {
		return fmt.Errorf("failed to marshal profile: %w", err)
	}
	for k, v := range userKey(profile.UserID, profileSK) {
		item[k] = v
	}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})

	if err != nil {
		r.logger.WithError(err).Error("Failed to save profile in DynamoDB")
		return fmt.Errorf("failed to save profile: %w", err)
	}

	return nil
}

func (r *ProfileRepository) GetProfile(ctx context.Context, userID string) (*models.UserProfile, error) {
	var profile models.UserProfile
	if err := r.get(ctx, userID, profileSK, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

func (r *ProfileRepository) SaveFinancial(ctx context.Context, userID string, data *models.FinancialData) error {
	data.UpdatedAt = time.Now().UTC()

	item, err := attributevalue.MarshalMap(data)
	if err != nil {
		return fmt.Errorf("failed to marshal financial data: %w", err)
	}
	for k, v := range userKey(userID, financialSK) {
		item[k] = v
	}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})

	if err != nil {
		r.logger.WithError(err).Error("Failed to save financial data in DynamoDB")
		return fmt.Errorf("failed to save financial data: %w", err)
	}

	return nil
}

func (r *ProfileRepository) GetFinancial(ctx context.Context, userID string) (*models.FinancialData, error) {
	var data models.FinancialData
	if err := r.get(ctx, userID, financialSK, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

func (r *ProfileRepository) get(ctx context.Context, userID, sk string, out interface{}) error {
	result, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       userKey(userID, sk),
	})

	if err != nil {
		r.logger.WithError(err).WithField("sk", sk).Error("Failed to get item from DynamoDB")
		return fmt.Errorf("failed to get %s: %w", sk, err)
	}

	if result.Item == nil {
		return ErrNotFound
	}

	if err := attributevalue.UnmarshalMap(result.Item, out); err != nil {
		return fmt.Errorf("failed to unmarshal %s: %w", sk, err)
	}

	return nil
}
