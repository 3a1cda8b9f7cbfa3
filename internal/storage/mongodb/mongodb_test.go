package mongodb

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"github.com/aanand-mishra/student-records-api/internal/storage"
	"github.com/aanand-mishra/student-records-api/internal/types"
)

func namespace(mt *mtest.T) string {
	return mt.Coll.Database().Name() + "." + mt.Coll.Name()
}

func studentDoc(id primitive.ObjectID, name, email string, created time.Time) bson.D {
	return bson.D{
		{Key: "_id", Value: id},
		{Key: "name", Value: name},
		{Key: "email", Value: email},
		{Key: "birthDate", Value: time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)},
		{Key: "program", Value: "CS"},
		{Key: "createdAt", Value: created},
		{Key: "updatedAt", Value: created},
	}
}

func TestStore(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	mt.Run("create assigns an object id", func(mt *mtest.T) {
		store := newStore(mt.Client, mt.Coll)
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		created, err := store.CreateStudent(ctx, types.Student{
			Name:      "Ana Gomez",
			Email:     "ana@x.com",
			BirthDate: types.NewDate(2000, time.January, 1),
			Program:   "CS",
			CreatedAt: now,
			UpdatedAt: now,
		})
		require.NoError(mt, err)

		_, err = primitive.ObjectIDFromHex(created.ID)
		assert.NoError(mt, err)
		assert.Equal(mt, now, created.CreatedAt)
	})

	mt.Run("create maps duplicate key errors", func(mt *mtest.T) {
		store := newStore(mt.Client, mt.Coll)
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{
			Index:   0,
			Code:    11000,
			Message: "E11000 duplicate key error collection: students index: email_unique",
		}))

		_, err := store.CreateStudent(ctx, types.Student{Email: "ana@x.com"})
		assert.ErrorIs(mt, err, storage.ErrDuplicateKey)
	})

	mt.Run("get by id decodes the document", func(mt *mtest.T) {
		store := newStore(mt.Client, mt.Coll)
		id := primitive.NewObjectID()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, namespace(mt), mtest.FirstBatch,
			studentDoc(id, "Ana Gomez", "ana@x.com", now)))

		got, err := store.GetStudentByID(ctx, id.Hex())
		require.NoError(mt, err)

		assert.Equal(mt, id.Hex(), got.ID)
		assert.Equal(mt, "Ana Gomez", got.Name)
		assert.Equal(mt, types.NewDate(2000, time.January, 1), got.BirthDate)
		assert.True(mt, now.Equal(got.CreatedAt))
	})

	mt.Run("get by id with no match is not found", func(mt *mtest.T) {
		store := newStore(mt.Client, mt.Coll)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, namespace(mt), mtest.FirstBatch))

		_, err := store.GetStudentByID(ctx, primitive.NewObjectID().Hex())
		assert.ErrorIs(mt, err, storage.ErrNotFound)
	})

	mt.Run("malformed id is not found without a round trip", func(mt *mtest.T) {
		store := newStore(mt.Client, mt.Coll)

		_, err := store.GetStudentByID(ctx, "42")
		assert.ErrorIs(mt, err, storage.ErrNotFound)

		err = store.DeleteStudentByID(ctx, "42")
		assert.ErrorIs(mt, err, storage.ErrNotFound)
	})

	mt.Run("list returns every document", func(mt *mtest.T) {
		store := newStore(mt.Client, mt.Coll)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, namespace(mt), mtest.FirstBatch,
			studentDoc(primitive.NewObjectID(), "Ana", "ana@x.com", now),
			studentDoc(primitive.NewObjectID(), "Juan", "juan@x.com", now),
		))

		students, err := store.GetStudents(ctx)
		require.NoError(mt, err)
		require.Len(mt, students, 2)
		assert.Equal(mt, "Juan", students[1].Name)
	})

	mt.Run("empty list is not nil", func(mt *mtest.T) {
		store := newStore(mt.Client, mt.Coll)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, namespace(mt), mtest.FirstBatch))

		students, err := store.GetStudentsByProgram(ctx, "Law")
		require.NoError(mt, err)
		assert.NotNil(mt, students)
		assert.Empty(mt, students)
	})

	mt.Run("count by program", func(mt *mtest.T) {
		store := newStore(mt.Client, mt.Coll)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, namespace(mt), mtest.FirstBatch,
			bson.D{{Key: "n", Value: int32(3)}}))

		n, err := store.CountStudentsByProgram(ctx, "CS")
		require.NoError(mt, err)
		assert.Equal(mt, int64(3), n)
	})

	mt.Run("delete with no match is not found", func(mt *mtest.T) {
		store := newStore(mt.Client, mt.Coll)
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: int32(0)}))

		err := store.DeleteStudentByID(ctx, primitive.NewObjectID().Hex())
		assert.ErrorIs(mt, err, storage.ErrNotFound)
	})

	mt.Run("update returns the stored document", func(mt *mtest.T) {
		store := newStore(mt.Client, mt.Coll)
		id := primitive.NewObjectID()
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "value", Value: studentDoc(id, "Ana Maria", "ana@x.com", now)},
		))

		got, err := store.UpdateStudent(ctx, types.Student{ID: id.Hex(), Name: "Ana Maria", Email: "ana@x.com"})
		require.NoError(mt, err)
		assert.Equal(mt, "Ana Maria", got.Name)
	})
}

func TestFilters(t *testing.T) {
	filter := nameContainsFilter("a.n")
	regex, ok := filter["name"].(primitive.Regex)
	require.True(t, ok)
	assert.Equal(t, `a\.n`, regex.Pattern)
	assert.Equal(t, "i", regex.Options)

	start := types.NewDate(2000, time.January, 1)
	end := types.NewDate(2000, time.December, 31)
	rng := birthDateRangeFilter(start, end)["birthDate"].(bson.M)
	assert.Equal(t, start.Time, rng["$gte"])
	assert.Equal(t, end.Time, rng["$lte"])
}
