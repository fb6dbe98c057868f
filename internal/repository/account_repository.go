package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/nextai/nextai/internal/models"
	"github.com/sirupsen/logrus"
)

type AccountRepository struct {
	client    DynamoAPI
	tableName string
	logger    *logrus.Logger
}

func NewAccountRepository(client DynamoAPI, tableName string, logger *logrus.Logger) *AccountRepository {
	return &AccountRepository{
		client:    client,
		tableName: tableName,
		logger:    logger,
	}
}

func accountKey(email string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: models.AccountPK(email)},
		"SK": &types.AttributeValueMemberS{Value: metadataSK},
	}
}

// GetByEmail returns ErrAccountNotFound when no account is registered.
func (r *AccountRepository) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	result, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       accountKey(email),
	})

	if err != nil {
		r.logger.WithError(err).Error("Failed to get account from DynamoDB")
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	if result.Item == nil {
		return nil, ErrAccountNotFound
	}

	var account models.Account
	if err := attributevalue.UnmarshalMap(result.Item, &account); err != nil {
		r.logger.WithError(err).Error("Failed to unmarshal account from DynamoDB")
		return nil, fmt.Errorf("failed to unmarshal account: %w", err)
	}

	return &account, nil
}

func (r *AccountRepository) Create(ctx context.Context, account *models.Account) error {
	now := time.Now().UTC()
	account.Email = models.NormalizeEmail(account.Email)
	account.CreatedAt = now
	account.UpdatedAt = now

	item, err := attributevalue.MarshalMap(account)
	if err != nil {
		r.logger.WithError(err).Error("Failed to marshal account for DynamoDB")
		return fmt.Errorf("failed to marshal account: %w", err)
	}

	item["PK"] = &types.AttributeValueMemberS{Value: account.GetPK()}
	item["SK"] = &types.AttributeValueMemberS{Value: account.GetSK()}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(PK)"),
	})

	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return ErrAccountExists
		}
		r.logger.WithError(err).Error("Failed to create account in DynamoDB")
		return fmt.Errorf("failed to create account: %w", err)
	}

	return nil
}

// UpdatePasswordHash replaces the stored credential for an existing account.
func (r *AccountRepository) UpdatePasswordHash(ctx context.Context, email, passwordHash string) error {
	_, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(r.tableName),
		Key:                 accountKey(email),
		UpdateExpression:    aws.String("SET password_hash = :hash, updated_at = :updated_at"),
		ConditionExpression: aws.String("attribute_exists(PK)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":hash":       &types.AttributeValueMemberS{Value: passwordHash},
			":updated_at": &types.AttributeValueMemberS{Value: time.Now().UTC().Format(time.RFC3339)},
		},
	})

	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return ErrAccountNotFound
		}
		r.logger.WithError(err).Error("Failed to update account password in DynamoDB")
		return fmt.Errorf("failed to update password: %w", err)
	}

	return nil
}

func (r *AccountRepository) SetDisabled(ctx context.Context, email string, disabled bool) error {
	_, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(r.tableName),
		Key:                 accountKey(email),
		UpdateExpression:    aws.String("SET disabled = :disabled, updated_at = :updated_at"),
		ConditionExpression: aws.String("attribute_exists(PK)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":disabled":   &types.AttributeValueMemberBOOL{Value: disabled},
			":updated_at": &types.AttributeValueMemberS{Value: time.Now().UTC().Format(time.RFC3339)},
		},
	})

	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return ErrAccountNotFound
		}
		return fmt.Errorf("failed to update account status: %w", err)
	}

	return nil
}

// Delete removes the account for email. Deleting a missing account is not an
// error.
func (r *AccountRepository) Delete(ctx context.Context, email string) error {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(r.tableName),
		Key:       accountKey(email),
	})

	if err != nil {
		r.logger.WithError(err).Error("Failed to delete account from DynamoDB")
		return fmt.Errorf("failed to delete account: %w", err)
	}

	return nil
}
