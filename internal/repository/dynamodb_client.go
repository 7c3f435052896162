// Package repository persists conversations in a DynamoDB single table.
//
// Key scheme: PK=CONV#<id> for everything in one conversation, SK=META# for
// the conversation record and SK=MSG#<rfc3339nano>#<suffix> for messages, so
// a single query returns the messages in chronological order.
package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"

	"frc-chat-gateway/internal/domain"
)

const (
	skMeta      = "META#"
	skPrefixMsg = "MSG#"
	pkPrefix    = "CONV#"
	ttlDuration = 90 * 24 * time.Hour
)

// dynamodbAPI is the minimal DynamoDB interface required by Client.
// Defined here for testability.
type dynamodbAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	TransactWriteItems(ctx context.Context, in *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

// Client wraps a DynamoDB table for conversation storage.
type Client struct {
	api       dynamodbAPI
	tableName string
}

// New creates a new repository Client.
func New(api dynamodbAPI, tableName string) (*Client, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("repository: table name must not be empty")
	}
	return &Client{api: api, tableName: tableName}, nil
}

var newUUID = func() string {
	return uuid.NewString()
}

func convPK(conversationID string) string {
	return pkPrefix + conversationID
}

// msgSK keys a message by creation time; the uuid suffix breaks ties for
// writes landing in the same nanosecond.
func msgSK(ts time.Time, suffix string) string {
	return skPrefixMsg + ts.UTC().Format(time.RFC3339Nano) + "#" + suffix
}

func ttlValue(now time.Time) int64 {
	return now.Add(ttlDuration).Unix()
}

// CreateConversation writes a new conversation record and returns its id.
func (c *Client) CreateConversation(ctx context.Context, userID, title, contextTag string) (string, error) {
	if strings.TrimSpace(userID) == "" {
		return "", errors.New("repository: CreateConversation: user id is required")
	}
	id := newUUID()
	now := time.Now().UTC()

	_, err := c.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(c.tableName),
		Item: map[string]types.AttributeValue{
			"PK":             &types.AttributeValueMemberS{Value: convPK(id)},
			"SK":             &types.AttributeValueMemberS{Value: skMeta},
			"conversationId": &types.AttributeValueMemberS{Value: id},
			"userId":         &types.AttributeValueMemberS{Value: userID},
			"title":          &types.AttributeValueMemberS{Value: title},
			"context":        &types.AttributeValueMemberS{Value: contextTag},
			"createdAt":      &types.AttributeValueMemberS{Value: now.Format(time.RFC3339Nano)},
			"updatedAt":      &types.AttributeValueMemberS{Value: now.Format(time.RFC3339Nano)},
			"ttl":            &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", ttlValue(now))},
		},
		ConditionExpression: aws.String("attribute_not_exists(PK)"),
	})
	if err != nil {
		return "", fmt.Errorf("repository: CreateConversation: %w", err)
	}
	return id, nil
}

// AppendMessage writes one message and bumps the conversation's updatedAt in
// a single transaction. Appending to a conversation without a META# record
// fails the condition check rather than creating an orphan.
func (c *Client) AppendMessage(ctx context.Context, conversationID, role, content string) error {
	if strings.TrimSpace(conversationID) == "" {
		return errors.New("repository: AppendMessage: conversation id is required")
	}
	if role != domain.RoleUser && role != domain.RoleAssistant {
		return fmt.Errorf("repository: AppendMessage: unsupported role %q", role)
	}
	now := time.Now().UTC()
	msgID := newUUID()

	_, err := c.api.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{
				Put: &types.Put{
					TableName: aws.String(c.tableName),
					Item: map[string]types.AttributeValue{
						"PK":             &types.AttributeValueMemberS{Value: convPK(conversationID)},
						"SK":             &types.AttributeValueMemberS{Value: msgSK(now, msgID[:8])},
						"messageId":      &types.AttributeValueMemberS{Value: msgID},
						"conversationId": &types.AttributeValueMemberS{Value: conversationID},
						"role":           &types.AttributeValueMemberS{Value: role},
						"content":        &types.AttributeValueMemberS{Value: content},
						"createdAt":      &types.AttributeValueMemberS{Value: now.Format(time.RFC3339Nano)},
						"ttl":            &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", ttlValue(now))},
					},
					ConditionExpression: aws.String("attribute_not_exists(PK) AND attribute_not_exists(SK)"),
				},
			},
			{
				Update: &types.Update{
					TableName: aws.String(c.tableName),
					Key: map[string]types.AttributeValue{
						"PK": &types.AttributeValueMemberS{Value: convPK(conversationID)},
						"SK": &types.AttributeValueMemberS{Value: skMeta},
					},
					UpdateExpression:    aws.String("SET updatedAt = :u"),
					ConditionExpression: aws.String("attribute_exists(PK)"),
					ExpressionAttributeValues: map[string]types.AttributeValue{
						":u": &types.AttributeValueMemberS{Value: now.Format(time.RFC3339Nano)},
					},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("repository: AppendMessage: %w", err)
	}
	return nil
}

// FindConversation loads a conversation with its messages in chronological
// order. Returns (nil, nil) when the conversation does not exist.
func (c *Client) FindConversation(ctx context.Context, id string) (*domain.Conversation, error) {
	out, err := c.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(c.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: convPK(id)},
			"SK": &types.AttributeValueMemberS{Value: skMeta},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("repository: FindConversation get item: %w", err)
	}
	if out == nil || len(out.Item) == 0 {
		return nil, nil
	}

	conv := domain.Conversation{ID: id}
	conv.UserID, _ = strAttr(out.Item, "userId")
	conv.Title, _ = strAttr(out.Item, "title")
	conv.Context, _ = strAttr(out.Item, "context")
	conv.CreatedAt = timeAttr(out.Item, "createdAt")
	conv.UpdatedAt = timeAttr(out.Item, "updatedAt")

	msgs, err := c.queryMessages(ctx, id)
	if err != nil {
		return nil, err
	}
	conv.Messages = msgs
	return &conv, nil
}

func (c *Client) queryMessages(ctx context.Context, conversationID string) ([]domain.Message, error) {
	out, err := c.api.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(c.tableName),
		KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :prefix)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":     &types.AttributeValueMemberS{Value: convPK(conversationID)},
			":prefix": &types.AttributeValueMemberS{Value: skPrefixMsg},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("repository: FindConversation query messages: %w", err)
	}

	msgs := make([]domain.Message, 0, len(out.Items))
	for _, item := range out.Items {
		msg := domain.Message{ConversationID: conversationID}
		msg.ID, _ = strAttr(item, "messageId")
		msg.Role, _ = strAttr(item, "role")
		msg.Content, _ = strAttr(item, "content")
		msg.CreatedAt = timeAttr(item, "createdAt")
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

func strAttr(item map[string]types.AttributeValue, key string) (string, error) {
	v, ok := item[key]
	if !ok {
		return "", fmt.Errorf("repository: missing attribute %q", key)
	}
	s, ok := v.(*types.AttributeValueMemberS)
	if !ok {
		return "", fmt.Errorf("repository: attribute %q is not a string", key)
	}
	return s.Value, nil
}

func timeAttr(item map[string]types.AttributeValue, key string) time.Time {
	s, err := strAttr(item, key)
	if err != nil {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
