// Package mongostore persists exam assignments in MongoDB.
package mongostore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/codexuz/crm-cd-platform-sub000/internal/model"
)

const collectionName = "exam_assignments"

type Store struct {
	client     *mongo.Client
	collection *mongo.Collection
}

// assignmentDoc is the stored form. Answer and score payloads are kept as
// JSON so their tagged value encoding matches the SQL backend.
type assignmentDoc struct {
	ID            string     `bson:"_id"`
	CandidateCode string     `bson:"candidate_code"`
	StudentRef    string     `bson:"student_ref"`
	ExamRef       string     `bson:"exam_ref"`
	TenantRef     string     `bson:"tenant_ref"`
	IssuedByRef   string     `bson:"issued_by_ref"`
	WindowStart   *time.Time `bson:"window_start,omitempty"`
	WindowEnd     *time.Time `bson:"window_end,omitempty"`
	Status        string     `bson:"status"`
	AnswersJSON   string     `bson:"answers_json"`
	ScoresJSON    string     `bson:"scores_json"`
	StartedAt     *time.Time `bson:"started_at,omitempty"`
	CompletedAt   *time.Time `bson:"completed_at,omitempty"`
	Notes         string     `bson:"notes"`
	Active        bool       `bson:"active"`
	Version       int64      `bson:"version"`
	CreatedAt     time.Time  `bson:"created_at"`
	UpdatedAt     time.Time  `bson:"updated_at"`
}

// New connects to uri, selects database and ensures the indexes exist.
func New(ctx context.Context, uri, database string) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	s := &Store{client: client, collection: client.Database(database).Collection(collectionName)}
	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	_, err := s.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "candidate_code", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("candidate_code_unique"),
		},
		{
			Keys: bson.D{{Key: "exam_ref", Value: 1}, {Key: "created_at", Value: 1}},
		},
	})
	if err != nil {
		return fmt.Errorf("create indexes: %w", err)
	}
	return nil
}

// Close disconnects the client.
func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

func (s *Store) Insert(ctx context.Context, a *model.ExamAssignment) error {
	doc, err := toDoc(a)
	if err != nil {
		return err
	}
	if _, err := s.collection.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) && strings.Contains(err.Error(), "candidate_code") {
			return fmt.Errorf("%w: %s", model.ErrDuplicateCode, a.CandidateCode)
		}
		return fmt.Errorf("insert assignment: %w", err)
	}
	return nil
}

func (s *Store) GetByCode(ctx context.Context, code string) (model.ExamAssignment, error) {
	var doc assignmentDoc
	err := s.collection.FindOne(ctx, bson.M{"candidate_code": code}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return model.ExamAssignment{}, model.ErrNotFound
	}
	if err != nil {
		return model.ExamAssignment{}, fmt.Errorf("get assignment: %w", err)
	}
	return fromDoc(doc)
}

// Update replaces the document only if its version is unchanged.
func (s *Store) Update(ctx context.Context, a *model.ExamAssignment) error {
	doc, err := toDoc(a)
	if err != nil {
		return err
	}
	doc.Version = a.Version + 1
	res, err := s.collection.ReplaceOne(ctx, bson.M{"_id": a.ID, "version": a.Version}, doc)
	if err != nil {
		return fmt.Errorf("update assignment: %w", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("%w: %s at version %d", model.ErrConflict, a.CandidateCode, a.Version)
	}
	a.Version++
	return nil
}

func (s *Store) ListByExam(ctx context.Context, examRef string) ([]model.ExamAssignment, error) {
	cur, err := s.collection.Find(ctx, bson.M{"exam_ref": examRef},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}
	defer cur.Close(ctx)
	var docs []assignmentDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}
	list := make([]model.ExamAssignment, 0, len(docs))
	for _, d := range docs {
		a, err := fromDoc(d)
		if err != nil {
			return nil, err
		}
		list = append(list, a)
	}
	return list, nil
}

func toDoc(a *model.ExamAssignment) (assignmentDoc, error) {
	answers, err := json.Marshal(a.Answers)
	if err != nil {
		return assignmentDoc{}, fmt.Errorf("encode answers: %w", err)
	}
	scores, err := json.Marshal(a.FinalScores)
	if err != nil {
		return assignmentDoc{}, fmt.Errorf("encode scores: %w", err)
	}
	d := assignmentDoc{
		ID:            a.ID,
		CandidateCode: a.CandidateCode,
		StudentRef:    a.StudentRef,
		ExamRef:       a.ExamRef,
		TenantRef:     a.TenantRef,
		IssuedByRef:   a.IssuedByRef,
		Status:        string(a.Status),
		AnswersJSON:   string(answers),
		ScoresJSON:    string(scores),
		StartedAt:     a.StartedAt,
		CompletedAt:   a.CompletedAt,
		Notes:         a.Notes,
		Active:        a.Active,
		Version:       a.Version,
		CreatedAt:     a.CreatedAt,
		UpdatedAt:     a.UpdatedAt,
	}
	if a.Window != nil {
		d.WindowStart, d.WindowEnd = a.Window.Start, a.Window.End
	}
	return d, nil
}

func fromDoc(d assignmentDoc) (model.ExamAssignment, error) {
	a := model.ExamAssignment{
		ID:            d.ID,
		CandidateCode: d.CandidateCode,
		StudentRef:    d.StudentRef,
		ExamRef:       d.ExamRef,
		TenantRef:     d.TenantRef,
		IssuedByRef:   d.IssuedByRef,
		Status:        model.Status(d.Status),
		StartedAt:     utc(d.StartedAt),
		CompletedAt:   utc(d.CompletedAt),
		Notes:         d.Notes,
		Active:        d.Active,
		Version:       d.Version,
		CreatedAt:     d.CreatedAt.UTC(),
		UpdatedAt:     d.UpdatedAt.UTC(),
	}
	if d.WindowStart != nil || d.WindowEnd != nil {
		a.Window = &model.Window{Start: utc(d.WindowStart), End: utc(d.WindowEnd)}
	}
	if err := json.Unmarshal([]byte(d.AnswersJSON), &a.Answers); err != nil {
		return a, fmt.Errorf("decode answers: %w", err)
	}
	if err := json.Unmarshal([]byte(d.ScoresJSON), &a.FinalScores); err != nil {
		return a, fmt.Errorf("decode scores: %w", err)
	}
	return a, nil
}

func utc(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
