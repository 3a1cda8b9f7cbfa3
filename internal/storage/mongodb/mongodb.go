// Package mongodb implements storage.Storage on a MongoDB collection.
//
// Documents live in the "students" collection. The unique index on email
// is created at startup and is what actually guarantees email uniqueness;
// the service layer's existence check only produces an earlier, friendlier
// failure.
package mongodb

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/aanand-mishra/student-records-api/internal/config"
	"github.com/aanand-mishra/student-records-api/internal/storage"
	"github.com/aanand-mishra/student-records-api/internal/types"
)

const collectionName = "students"

type document struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	Name      string             `bson:"name"`
	Email     string             `bson:"email"`
	BirthDate time.Time          `bson:"birthDate"`
	Program   string             `bson:"program"`
	CreatedAt time.Time          `bson:"createdAt"`
	UpdatedAt time.Time          `bson:"updatedAt"`
}

func (d document) toStudent() types.Student {
	return types.Student{
		ID:        d.ID.Hex(),
		Name:      d.Name,
		Email:     d.Email,
		BirthDate: types.DateOf(d.BirthDate.UTC()),
		Program:   d.Program,
		CreatedAt: d.CreatedAt.UTC(),
		UpdatedAt: d.UpdatedAt.UTC(),
	}
}

type Store struct {
	client *mongo.Client
	coll   *mongo.Collection
}

var _ storage.Storage = (*Store)(nil)

// New connects to cfg.Storage.MongoURI, verifies the connection and
// ensures the collection indexes exist.
func New(ctx context.Context, cfg *config.Config) (*Store, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	clientOptions := options.Client().
		ApplyURI(cfg.Storage.MongoURI).
		SetServerSelectionTimeout(5 * time.Second)

	client, err := mongo.Connect(connectCtx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("mongodb.New: %w", translate("connect", err))
	}

	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongodb.New: %w", translate("ping", err))
	}

	m := newStore(client, client.Database(cfg.Storage.MongoDatabase).Collection(collectionName))
	if err := m.ensureIndexes(connectCtx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongodb.New: %w", err)
	}

	return m, nil
}

func newStore(client *mongo.Client, coll *mongo.Collection) *Store {
	return &Store{client: client, coll: coll}
}

func (m *Store) ensureIndexes(ctx context.Context) error {
	_, err := m.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("email_unique"),
		},
		{
			Keys:    bson.D{{Key: "program", Value: 1}},
			Options: options.Index().SetName("program"),
		},
		{
			Keys:    bson.D{{Key: "birthDate", Value: 1}},
			Options: options.Index().SetName("birth_date"),
		},
	})
	if err != nil {
		return translate("create indexes", err)
	}
	return nil
}

func (m *Store) CreateStudent(ctx context.Context, student types.Student) (types.Student, error) {
	doc := document{
		ID:        primitive.NewObjectID(),
		Name:      student.Name,
		Email:     student.Email,
		BirthDate: student.BirthDate.Time,
		Program:   student.Program,
		CreatedAt: student.CreatedAt,
		UpdatedAt: student.UpdatedAt,
	}

	if _, err := m.coll.InsertOne(ctx, doc); err != nil {
		return types.Student{}, translate("insert student", err)
	}

	student.ID = doc.ID.Hex()
	return student, nil
}

func (m *Store) GetStudentByID(ctx context.Context, id string) (types.Student, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return types.Student{}, fmt.Errorf("find student by id: %w", storage.ErrNotFound)
	}
	return m.findOne(ctx, "find student by id", bson.M{"_id": oid})
}

func (m *Store) GetStudentByEmail(ctx context.Context, email string) (types.Student, error) {
	return m.findOne(ctx, "find student by email", bson.M{"email": email})
}

func (m *Store) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	n, err := m.coll.CountDocuments(ctx, bson.M{"email": email}, options.Count().SetLimit(1))
	if err != nil {
		return false, translate("exists by email", err)
	}
	return n > 0, nil
}

func (m *Store) GetStudents(ctx context.Context) ([]types.Student, error) {
	return m.find(ctx, "find students", bson.M{})
}

func (m *Store) GetStudentsByProgram(ctx context.Context, program string) ([]types.Student, error) {
	return m.find(ctx, "find students by program", bson.M{"program": program})
}

func (m *Store) SearchStudentsByName(ctx context.Context, fragment string) ([]types.Student, error) {
	return m.find(ctx, "search students by name", nameContainsFilter(fragment))
}

func (m *Store) GetStudentsByBirthDateRange(ctx context.Context, start, end types.Date) ([]types.Student, error) {
	return m.find(ctx, "find students by birth date", birthDateRangeFilter(start, end))
}

func (m *Store) GetStudentsOrderedByName(ctx context.Context) ([]types.Student, error) {
	opts := options.Find().SetSort(bson.D{{Key: "name", Value: 1}})
	return m.find(ctx, "find students ordered by name", bson.M{}, opts)
}

func (m *Store) CountStudentsByProgram(ctx context.Context, program string) (int64, error) {
	n, err := m.coll.CountDocuments(ctx, bson.M{"program": program})
	if err != nil {
		return 0, translate("count students by program", err)
	}
	return n, nil
}

func (m *Store) UpdateStudent(ctx context.Context, student types.Student) (types.Student, error) {
	oid, err := primitive.ObjectIDFromHex(student.ID)
	if err != nil {
		return types.Student{}, fmt.Errorf("update student: %w", storage.ErrNotFound)
	}

	update := bson.M{"$set": bson.M{
		"name":      student.Name,
		"email":     student.Email,
		"birthDate": student.BirthDate.Time,
		"program":   student.Program,
		"updatedAt": student.UpdatedAt,
	}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var doc document
	if err := m.coll.FindOneAndUpdate(ctx, bson.M{"_id": oid}, update, opts).Decode(&doc); err != nil {
		return types.Student{}, translate("update student", err)
	}
	return doc.toStudent(), nil
}

func (m *Store) DeleteStudentByID(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("delete student: %w", storage.ErrNotFound)
	}

	res, err := m.coll.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return translate("delete student", err)
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("delete student: %w", storage.ErrNotFound)
	}
	return nil
}

func (m *Store) Ping(ctx context.Context) error {
	if err := m.client.Ping(ctx, nil); err != nil {
		return translate("ping", err)
	}
	return nil
}

func (m *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return m.client.Disconnect(ctx)
}

func (m *Store) findOne(ctx context.Context, op string, filter bson.M) (types.Student, error) {
	var doc document
	if err := m.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		return types.Student{}, translate(op, err)
	}
	return doc.toStudent(), nil
}

func (m *Store) find(ctx context.Context, op string, filter bson.M, opts ...*options.FindOptions) ([]types.Student, error) {
	cursor, err := m.coll.Find(ctx, filter, opts...)
	if err != nil {
		return nil, translate(op, err)
	}
	defer cursor.Close(ctx)

	var docs []document
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, translate(op, err)
	}

	students := make([]types.Student, 0, len(docs))
	for _, doc := range docs {
		students = append(students, doc.toStudent())
	}
	return students, nil
}

// nameContainsFilter matches fragment anywhere in name, ignoring case.
// The fragment is quoted so regex metacharacters match literally.
func nameContainsFilter(fragment string) bson.M {
	return bson.M{"name": primitive.Regex{Pattern: regexp.QuoteMeta(fragment), Options: "i"}}
}

func birthDateRangeFilter(start, end types.Date) bson.M {
	return bson.M{"birthDate": bson.M{"$gte": start.Time, "$lte": end.Time}}
}

func translate(op string, err error) error {
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	case mongo.IsDuplicateKeyError(err):
		return fmt.Errorf("%s: %w: %w", op, storage.ErrDuplicateKey, err)
	case mongo.IsTimeout(err), mongo.IsNetworkError(err), errors.Is(err, mongo.ErrClientDisconnected):
		return fmt.Errorf("%s: %w: %w", op, storage.ErrUnavailable, err)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}
