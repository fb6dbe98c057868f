package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/nextai/nextai/internal/models"
	"github.com/sirupsen/logrus"
)

type ChatRepository struct {
	client    DynamoAPI
	tableName string
	logger    *logrus.Logger
}

func NewChatRepository(client DynamoAPI, tableName string, logger *logrus.Logger) *ChatRepository {
	return &ChatRepository{
		client:    client,
		tableName: tableName,
		logger:    logger,
	}
}

func (r *ChatRepository) Create(ctx context.Context, chat *models.Chat) error {
	if chat.Messages == nil {
		chat.Messages = []models.ChatMessage{}
	}

	item, err := attributevalue.MarshalMap(chat)
	if err != nil {
		return fmt.Errorf("failed to marshal chat: %w", err)
	}
	for k, v := range userKey(chat.UserID, models.ChatSK(chat.ID)) {
		item[k] = v
	}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(PK)"),
	})

	if err != nil {
		r.logger.WithError(err).Error("Failed to create chat in DynamoDB")
		return fmt.Errorf("failed to create chat: %w", err)
	}

	return nil
}

func (r *ChatRepository) Get(ctx context.Context, userID, chatID string) (*models.Chat, error) {
	result, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       userKey(userID, models.ChatSK(chatID)),
	})

	if err != nil {
		return nil, fmt.Errorf("failed to get chat: %w", err)
	}

	if result.Item == nil {
		return nil, ErrChatNotFound
	}

	var chat models.Chat
	if err := attributevalue.UnmarshalMap(result.Item, &chat); err != nil {
		return nil, fmt.Errorf("failed to unmarshal chat: %w", err)
	}

	return &chat, nil
}

// List returns the user's chats, most recently updated first.
func (r *ChatRepository) List(ctx context.Context, userID string, limit int) ([]models.Chat, error) {
	var chats []models.Chat
	var startKey map[string]types.AttributeValue

	for {
		result, err := r.client.Query(ctx, &dynamodb.QueryInput{
			TableName:              aws.String(r.tableName),
			KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :sk_prefix)"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":pk":        &types.AttributeValueMemberS{Value: models.UserPK(userID)},
				":sk_prefix": &types.AttributeValueMemberS{Value: models.ChatSKPrefix},
			},
			ExclusiveStartKey: startKey,
		})

		if err != nil {
			r.logger.WithError(err).Error("Failed to query chats from DynamoDB")
			return nil, fmt.Errorf("failed to list chats: %w", err)
		}

		var page []models.Chat
		if err := attributevalue.UnmarshalListOfMaps(result.Items, &page); err != nil {
			return nil, fmt.Errorf("failed to unmarshal chats: %w", err)
		}
		chats = append(chats, page...)

		if len(result.LastEvaluatedKey) == 0 {
			break
		}
		startKey = result.LastEvaluatedKey
	}

	sort.SliceStable(chats, func(i, j int) bool {
		return chats[i].UpdatedAt.After(chats[j].UpdatedAt)
	})

	if limit > 0 && len(chats) > limit {
		chats = chats[:limit]
	}

	return chats, nil
}

func (r *ChatRepository) SaveMessages(ctx context.Context, userID, chatID string, messages []models.ChatMessage, updatedAt time.Time) error {
	encoded, err := attributevalue.Marshal(messages)
	if err != nil {
		return fmt.Errorf("failed to marshal messages: %w", err)
	}

	return r.update(ctx, userID, chatID, "SET messages = :messages, updated_at = :updated_at", nil, map[string]types.AttributeValue{
		":messages":   encoded,
		":updated_at": &types.AttributeValueMemberS{Value: updatedAt.UTC().Format(time.RFC3339Nano)},
	})
}

func (r *ChatRepository) UpdateTitle(ctx context.Context, userID, chatID, title string, updatedAt time.Time) error {
	return r.update(ctx, userID, chatID, "SET #title = :title, updated_at = :updated_at", map[string]string{"#title": "title"}, map[string]types.AttributeValue{
		":title":      &types.AttributeValueMemberS{Value: title},
		":updated_at": &types.AttributeValueMemberS{Value: updatedAt.UTC().Format(time.RFC3339Nano)},
	})
}

func (r *ChatRepository) update(ctx context.Context, userID, chatID, expr string, names map[string]string, values map[string]types.AttributeValue) error {
	input := &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       userKey(userID, models.ChatSK(chatID)),
		UpdateExpression:          aws.String(expr),
		ConditionExpression:       aws.String("attribute_exists(PK)"),
		ExpressionAttributeValues: values,
	}
	if len(names) > 0 {
		input.ExpressionAttributeNames = names
	}

	_, err := r.client.UpdateItem(ctx, input)

	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return ErrChatNotFound
		}
		r.logger.WithError(err).Error("Failed to update chat in DynamoDB")
		return fmt.Errorf("failed to update chat: %w", err)
	}

	return nil
}
