package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"stockwatch_backend/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoDB collection names
const (
	MongoDBName            = "stockwatch"
	MongoCatalogCollection = "ticker_catalog"
	MongoConnectTimeout    = 10 * time.Second
	MongoOperationTimeout  = 15 * time.Second
)

// MongoCatalogDoc is the single catalog document kept in MongoDB
type MongoCatalogDoc struct {
	ID        string          `bson:"_id"`
	UpdatedAt time.Time       `bson:"updated_at"`
	Count     int             `bson:"count"`
	Stocks    []MongoStockDoc `bson:"stocks"`
}

// MongoStockDoc is one catalog entry inside MongoCatalogDoc
type MongoStockDoc struct {
	Symbol   string `bson:"symbol"`
	Name     string `bson:"name"`
	Exchange string `bson:"exchange"`
	Status   string `bson:"status"`
}

// MongoCatalogMirror keeps an off-site copy of the ticker catalog in
// MongoDB Atlas. Disabled when no URI is configured.
type MongoCatalogMirror struct {
	client   *mongo.Client
	database *mongo.Database
	enabled  bool
}

// NewMongoCatalogMirror connects to MongoDB if a URI is configured. An empty
// URI yields a disabled mirror, not an error.
func NewMongoCatalogMirror(uri string) (*MongoCatalogMirror, error) {
	if uri == "" {
		log.Println("MONGODB_URI not set, MongoDB catalog mirror disabled")
		return &MongoCatalogMirror{enabled: false}, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), MongoConnectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("MongoDB ping failed: %w", err)
	}

	log.Println("MongoDB catalog mirror connected")
	return &MongoCatalogMirror{
		client:   client,
		database: client.Database(MongoDBName),
		enabled:  true,
	}, nil
}

// Enabled reports whether the mirror is configured and connected
func (m *MongoCatalogMirror) Enabled() bool {
	return m != nil && m.enabled
}

// SaveCatalog replaces the catalog document with the current stock list
func (m *MongoCatalogMirror) SaveCatalog(stocks []models.Stock) error {
	if !m.Enabled() {
		return nil
	}

	docs := make([]MongoStockDoc, 0, len(stocks))
	for _, stock := range stocks {
		docs = append(docs, MongoStockDoc{
			Symbol:   stock.Symbol,
			Name:     stock.Name,
			Exchange: stock.Exchange,
			Status:   stock.Status,
		})
	}

	doc := MongoCatalogDoc{
		ID:        "catalog",
		UpdatedAt: time.Now(),
		Count:     len(docs),
		Stocks:    docs,
	}

	ctx, cancel := context.WithTimeout(context.Background(), MongoOperationTimeout)
	defer cancel()

	coll := m.database.Collection(MongoCatalogCollection)
	opts := options.Replace().SetUpsert(true)
	if _, err := coll.ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc, opts); err != nil {
		return fmt.Errorf("failed to save catalog to MongoDB: %w", err)
	}

	return nil
}

// Close disconnects from MongoDB
func (m *MongoCatalogMirror) Close() error {
	if !m.Enabled() {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), MongoConnectTimeout)
	defer cancel()
	return m.client.Disconnect(ctx)
}
