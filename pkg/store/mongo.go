package store

import (
	"context"
	"encoding/json"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/google/uuid"

	"github.com/keelpm/keel/pkg/errors"
	"github.com/keelpm/keel/pkg/solve"
)

// MongoStore is a MongoDB-backed plan store for server deployments where
// plans must survive restarts and be shared across instances.
type MongoStore struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// planDoc is the stored document shape. The plan body is kept as its JSON
// encoding so the wire format and the stored format never drift.
type planDoc struct {
	ID        string    `bson:"_id"`
	Roots     []string  `bson:"roots"`
	Packages  int       `bson:"packages"`
	CreatedAt time.Time `bson:"created_at"`
	Plan      []byte    `bson:"plan"`
}

// NewMongoStore connects to MongoDB and verifies the connection.
func NewMongoStore(ctx context.Context, uri, database string) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeNetwork, err, "connect to mongodb")
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, errors.Wrap(errors.ErrCodeNetwork, err, "ping mongodb")
	}
	if database == "" {
		database = "keel"
	}
	return &MongoStore{
		client: client,
		coll:   client.Database(database).Collection("plans"),
	}, nil
}

// Save upserts the plan document.
func (s *MongoStore) Save(ctx context.Context, plan *solve.Plan) error {
	if plan.ID == "" {
		plan.ID = uuid.NewString()
	}
	body, err := json.Marshal(plan)
	if err != nil {
		return errors.Wrap(errors.ErrCodeInvalidPlan, err, "marshal plan")
	}
	doc := planDoc{
		ID:        plan.ID,
		Roots:     plan.Roots,
		Packages:  len(plan.Packages),
		CreatedAt: plan.CreatedAt,
		Plan:      body,
	}
	_, err = s.coll.ReplaceOne(ctx,
		bson.M{"_id": plan.ID}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "save plan %s", plan.ID)
	}
	return nil
}

// Get retrieves a plan by ID.
func (s *MongoStore) Get(ctx context.Context, id string) (*solve.Plan, error) {
	var doc planDoc
	err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, errors.New(errors.ErrCodePlanNotFound, "plan %s", id)
		}
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "load plan %s", id)
	}
	var plan solve.Plan
	if err := json.Unmarshal(doc.Plan, &plan); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidPlan, err, "parse plan %s", id)
	}
	return &plan, nil
}

// List returns summaries of all stored plans, newest first.
func (s *MongoStore) List(ctx context.Context) ([]Summary, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetProjection(bson.M{"plan": 0})
	cur, err := s.coll.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "list plans")
	}
	defer cur.Close(ctx)

	var out []Summary
	for cur.Next(ctx) {
		var doc planDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, errors.Wrap(errors.ErrCodeInternal, err, "decode plan summary")
		}
		out = append(out, Summary{
			ID:        doc.ID,
			Roots:     doc.Roots,
			Packages:  doc.Packages,
			CreatedAt: doc.CreatedAt,
		})
	}
	if err := cur.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "iterate plans")
	}
	return out, nil
}

// Delete removes a plan document. A missing plan reports PLAN_NOT_FOUND,
// matching Get.
func (s *MongoStore) Delete(ctx context.Context, id string) error {
	res, err := s.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "delete plan %s", id)
	}
	if res.DeletedCount == 0 {
		return errors.New(errors.ErrCodePlanNotFound, "plan %s", id)
	}
	return nil
}

// Close disconnects the client.
func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

var _ Store = (*MongoStore)(nil)
