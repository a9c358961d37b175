package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"tumor-scan/internal/domain/entity"
	"tumor-scan/internal/domain/port"
)

// MongoScanRepository хранит снимки в MongoDB: коллекция на владельца
type MongoScanRepository struct {
	client *mongo.Client
	db     *mongo.Database
}

// scanDocument документ снимка в коллекции владельца
type scanDocument struct {
	ID         primitive.ObjectID `bson:"_id,omitempty"`
	Image      []byte             `bson:"image"`
	Format     string             `bson:"format"`
	UploadDate time.Time          `bson:"upload_date"`
	SizeBytes  int                `bson:"size_bytes"`
	ImageMode  string             `bson:"image_mode"`
	ImageSize  []int              `bson:"image_size"` // [ширина, высота]
}

// NewMongoScanRepository подключается к MongoDB и проверяет соединение
func NewMongoScanRepository(ctx context.Context, uri, database string) (*MongoScanRepository, error) {
	opts := options.Client().ApplyURI(uri).SetServerSelectionTimeout(2 * time.Second)
	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	return &MongoScanRepository{
		client: client,
		db:     client.Database(database),
	}, nil
}

// Close закрывает соединение
func (r *MongoScanRepository) Close(ctx context.Context) error {
	return r.client.Disconnect(ctx)
}

// Save сохраняет снимок и возвращает его ID
func (r *MongoScanRepository) Save(ctx context.Context, scan *entity.ScanRecord) (string, error) {
	if len(scan.Image) > entity.MaxScanBytes {
		return "", port.ErrScanTooLarge
	}

	res, err := r.db.Collection(scan.Owner).InsertOne(ctx, toDocument(scan))
	if err != nil {
		return "", fmt.Errorf("insert scan: %w", err)
	}
	id, ok := res.InsertedID.(primitive.ObjectID)
	if !ok {
		return "", fmt.Errorf("insert scan: unexpected id type %T", res.InsertedID)
	}
	return id.Hex(), nil
}

// List возвращает снимки владельца, новые первыми
func (r *MongoScanRepository) List(ctx context.Context, owner string) ([]*entity.ScanRecord, error) {
	opts := options.Find().SetSort(bson.D{{Key: "upload_date", Value: -1}})
	cur, err := r.db.Collection(owner).Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, fmt.Errorf("find scans: %w", err)
	}

	var docs []scanDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("read scans: %w", err)
	}

	out := make([]*entity.ScanRecord, 0, len(docs))
	for i := range docs {
		out = append(out, fromDocument(owner, &docs[i]))
	}
	return out, nil
}

// Get возвращает снимок владельца по ID
func (r *MongoScanRepository) Get(ctx context.Context, owner, id string) (*entity.ScanRecord, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, port.ErrScanNotFound
	}

	var doc scanDocument
	err = r.db.Collection(owner).FindOne(ctx, bson.D{{Key: "_id", Value: oid}}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, port.ErrScanNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find scan: %w", err)
	}
	return fromDocument(owner, &doc), nil
}

// Delete удаляет снимок владельца
func (r *MongoScanRepository) Delete(ctx context.Context, owner, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return port.ErrScanNotFound
	}

	res, err := r.db.Collection(owner).DeleteOne(ctx, bson.D{{Key: "_id", Value: oid}})
	if err != nil {
		return fmt.Errorf("delete scan: %w", err)
	}
	if res.DeletedCount == 0 {
		return port.ErrScanNotFound
	}
	return nil
}

// Clear удаляет все снимки владельца
func (r *MongoScanRepository) Clear(ctx context.Context, owner string) (int, error) {
	res, err := r.db.Collection(owner).DeleteMany(ctx, bson.D{})
	if err != nil {
		return 0, fmt.Errorf("clear scans: %w", err)
	}
	return int(res.DeletedCount), nil
}

// Status проверяет соединение и считает коллекции
func (r *MongoScanRepository) Status(ctx context.Context) port.StorageStatus {
	status := port.StorageStatus{Backend: "mongo"}
	if err := r.client.Ping(ctx, readpref.Primary()); err != nil {
		status.Error = err.Error()
		return status
	}

	names, err := r.db.ListCollectionNames(ctx, bson.D{})
	if err != nil {
		status.Error = err.Error()
		return status
	}
	status.Connected = true
	status.Collections = len(names)
	return status
}

func toDocument(scan *entity.ScanRecord) *scanDocument {
	return &scanDocument{
		Image:      scan.Image,
		Format:     scan.Format,
		UploadDate: scan.UploadedAt,
		SizeBytes:  scan.SizeBytes,
		ImageMode:  scan.Mode,
		ImageSize:  []int{scan.Width, scan.Height},
	}
}

func fromDocument(owner string, doc *scanDocument) *entity.ScanRecord {
	rec := &entity.ScanRecord{
		ID:         doc.ID.Hex(),
		Owner:      owner,
		Image:      doc.Image,
		Format:     doc.Format,
		UploadedAt: doc.UploadDate,
		SizeBytes:  doc.SizeBytes,
		Mode:       doc.ImageMode,
	}
	if len(doc.ImageSize) == 2 {
		rec.Width, rec.Height = doc.ImageSize[0], doc.ImageSize[1]
	}
	return rec
}

// Проверка реализации интерфейса
var _ port.ScanRepository = (*MongoScanRepository)(nil)
