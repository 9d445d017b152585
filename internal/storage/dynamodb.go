package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/amillerrr/media-ingest/pkg/models"
)

// AssetRepository handles asset metadata storage in DynamoDB.
type AssetRepository struct {
	client    *dynamodb.Client
	tableName string
}

// NewAssetRepository creates a new AssetRepository from an existing
// DynamoDB client.
func NewAssetRepository(client *dynamodb.Client, tableName string) (*AssetRepository, error) {
	if tableName == "" {
		return nil, errors.New("DynamoDB table name is required")
	}
	return &AssetRepository{
		client:    client,
		tableName: tableName,
	}, nil
}

func assetKey(assetID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"pk": &types.AttributeValueMemberS{Value: fmt.Sprintf("ASSET#%s", assetID)},
		"sk": &types.AttributeValueMemberS{Value: "METADATA"},
	}
}

// CreateAsset creates a new draft asset record owned by ownerID.
func (r *AssetRepository) CreateAsset(ctx context.Context, assetID, ownerID, title string) (*models.AssetRecord, error) {
	now := time.Now().UTC().Format(time.RFC3339)

	asset := &models.AssetRecord{
		PK:        fmt.Sprintf("ASSET#%s", assetID),
		SK:        "METADATA",
		GSI1PK:    fmt.Sprintf("OWNER#%s", ownerID),
		GSI1SK:    fmt.Sprintf("%s#%s", now, assetID),
		AssetID:   assetID,
		OwnerID:   ownerID,
		Title:     title,
		Status:    models.StatusDraft,
		CreatedAt: now,
		UpdatedAt: now,
	}

	item, err := attributevalue.MarshalMap(asset)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal asset: %w", err)
	}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(pk)"),
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return nil, fmt.Errorf("asset already exists: %s", assetID)
		}
		return nil, fmt.Errorf("%w: create asset: %v", models.ErrStorage, err)
	}

	return asset, nil
}

// GetAsset retrieves asset metadata by ID.
func (r *AssetRepository) GetAsset(ctx context.Context, assetID string) (*models.AssetRecord, error) {
	result, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       assetKey(assetID),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: get asset: %v", models.ErrStorage, err)
	}

	if result.Item == nil {
		return nil, models.ErrAssetNotFound
	}

	var asset models.AssetRecord
	if err := attributevalue.UnmarshalMap(result.Item, &asset); err != nil {
		return nil, fmt.Errorf("failed to unmarshal asset: %w", err)
	}

	return &asset, nil
}

// UpdateAssetVideo records the stored video key, classification and size
// on an existing asset and marks it ready. The key is only ever written
// after the object is durably stored, so the prior reference is never
// clobbered by a failed upload.
func (r *AssetRepository) UpdateAssetVideo(ctx context.Context, assetID, videoKey string, classification models.Classification, sizeBytes int64) (*models.AssetRecord, error) {
	now := time.Now().UTC().Format(time.RFC3339)

	result, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(r.tableName),
		Key:       assetKey(assetID),
		UpdateExpression: aws.String(`
			SET #status = :status,
			    updated_at = :updated_at,
			    video_key = :video_key,
			    classification = :classification,
			    file_size_bytes = :size
		`),
		ExpressionAttributeNames: map[string]string{
			"#status": "status",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":status":         &types.AttributeValueMemberS{Value: string(models.StatusReady)},
			":updated_at":     &types.AttributeValueMemberS{Value: now},
			":video_key":      &types.AttributeValueMemberS{Value: videoKey},
			":classification": &types.AttributeValueMemberS{Value: string(classification)},
			":size":           &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", sizeBytes)},
		},
		ConditionExpression: aws.String("attribute_exists(pk)"),
		ReturnValues:        types.ReturnValueAllNew,
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return nil, models.ErrAssetNotFound
		}
		return nil, fmt.Errorf("%w: update asset video: %v", models.ErrStorage, err)
	}

	var asset models.AssetRecord
	if err := attributevalue.UnmarshalMap(result.Attributes, &asset); err != nil {
		return nil, fmt.Errorf("failed to unmarshal asset: %w", err)
	}

	return &asset, nil
}

// UpdateAssetThumbnail records the stored thumbnail key on an existing
// asset.
func (r *AssetRepository) UpdateAssetThumbnail(ctx context.Context, assetID, thumbnailKey string) (*models.AssetRecord, error) {
	now := time.Now().UTC().Format(time.RFC3339)

	result, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:        aws.String(r.tableName),
		Key:              assetKey(assetID),
		UpdateExpression: aws.String("SET updated_at = :updated_at, thumbnail_key = :thumbnail_key"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":updated_at":    &types.AttributeValueMemberS{Value: now},
			":thumbnail_key": &types.AttributeValueMemberS{Value: thumbnailKey},
		},
		ConditionExpression: aws.String("attribute_exists(pk)"),
		ReturnValues:        types.ReturnValueAllNew,
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return nil, models.ErrAssetNotFound
		}
		return nil, fmt.Errorf("%w: update asset thumbnail: %v", models.ErrStorage, err)
	}

	var asset models.AssetRecord
	if err := attributevalue.UnmarshalMap(result.Attributes, &asset); err != nil {
		return nil, fmt.Errorf("failed to unmarshal asset: %w", err)
	}

	return &asset, nil
}

// SetAssetStatus updates only the status field.
func (r *AssetRepository) SetAssetStatus(ctx context.Context, assetID string, status models.AssetStatus) error {
	if !status.IsValid() {
		return fmt.Errorf("invalid asset status: %s", status)
	}

	now := time.Now().UTC().Format(time.RFC3339)

	_, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:        aws.String(r.tableName),
		Key:              assetKey(assetID),
		UpdateExpression: aws.String("SET #status = :status, updated_at = :updated_at"),
		ExpressionAttributeNames: map[string]string{
			"#status": "status",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":status":     &types.AttributeValueMemberS{Value: string(status)},
			":updated_at": &types.AttributeValueMemberS{Value: now},
		},
		ConditionExpression: aws.String("attribute_exists(pk)"),
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return models.ErrAssetNotFound
		}
		return fmt.Errorf("%w: set asset status: %v", models.ErrStorage, err)
	}

	return nil
}

// ListAssetsByOwner retrieves an owner's assets in reverse chronological
// order.
func (r *AssetRepository) ListAssetsByOwner(ctx context.Context, ownerID string, limit int32, startKey map[string]types.AttributeValue) ([]models.AssetRecord, map[string]types.AttributeValue, error) {
	input := &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		IndexName:              aws.String("GSI1"),
		KeyConditionExpression: aws.String("gsi1pk = :pk"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: fmt.Sprintf("OWNER#%s", ownerID)},
		},
		ScanIndexForward: aws.Bool(false), // Newest first
		Limit:            aws.Int32(limit),
	}

	if startKey != nil {
		input.ExclusiveStartKey = startKey
	}

	result, err := r.client.Query(ctx, input)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: list assets: %v", models.ErrStorage, err)
	}

	var assets []models.AssetRecord
	if err := attributevalue.UnmarshalListOfMaps(result.Items, &assets); err != nil {
		return nil, nil, fmt.Errorf("failed to unmarshal assets: %w", err)
	}

	return assets, result.LastEvaluatedKey, nil
}
