package models

// AssetStatus represents the lifecycle state of an asset.
type AssetStatus string

const (
	StatusDraft      AssetStatus = "draft"
	StatusProcessing AssetStatus = "processing"
	StatusReady      AssetStatus = "ready"
	StatusFailed     AssetStatus = "failed"
)

// IsValid returns true if the status is a valid AssetStatus.
func (s AssetStatus) IsValid() bool {
	switch s {
	case StatusDraft, StatusProcessing, StatusReady, StatusFailed:
		return true
	}
	return false
}

// Classification is the aspect-ratio bucket of a video asset. It doubles
// as the key-prefix namespace in object storage.
type Classification string

const (
	ClassLandscape Classification = "landscape"
	ClassPortrait  Classification = "portrait"
	ClassOther     Classification = "other"
)

// AssetRecord represents the full metadata for an asset.
type AssetRecord struct {
	// Keys
	PK     string `dynamodbav:"pk" json:"-"`
	SK     string `dynamodbav:"sk" json:"-"`
	GSI1PK string `dynamodbav:"gsi1pk,omitempty" json:"-"`
	GSI1SK string `dynamodbav:"gsi1sk,omitempty" json:"-"`

	// Attributes
	AssetID        string         `dynamodbav:"asset_id" json:"assetId"`
	OwnerID        string         `dynamodbav:"owner_id" json:"ownerId"`
	Title          string         `dynamodbav:"title,omitempty" json:"title,omitempty"`
	Status         AssetStatus    `dynamodbav:"status" json:"status"`
	VideoKey       string         `dynamodbav:"video_key,omitempty" json:"-"`
	ThumbnailKey   string         `dynamodbav:"thumbnail_key,omitempty" json:"-"`
	Classification Classification `dynamodbav:"classification,omitempty" json:"classification,omitempty"`
	FileSizeBytes  int64          `dynamodbav:"file_size_bytes,omitempty" json:"fileSizeBytes,omitempty"`
	CreatedAt      string         `dynamodbav:"created_at" json:"createdAt"`
	UpdatedAt      string         `dynamodbav:"updated_at" json:"updatedAt"`
}

// AssetResponse is the wire form of an AssetRecord. Object keys are never
// exposed; read URLs are presigned per request and never persisted.
type AssetResponse struct {
	AssetRecord
	VideoURL     string `json:"videoUrl,omitempty"`
	ThumbnailURL string `json:"thumbnailUrl,omitempty"`
}

// IngestEvent is published to the events queue after a video has been
// durably stored and its record updated.
type IngestEvent struct {
	AssetID        string         `json:"assetId"`
	OwnerID        string         `json:"ownerId"`
	VideoKey       string         `json:"videoKey"`
	Classification Classification `json:"classification"`
	SizeBytes      int64          `json:"sizeBytes"`
	IngestedAt     string         `json:"ingestedAt"`
}
