// Package dynamo implements store.Store on three DynamoDB tables keyed by id.
package dynamo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spigell/vacancy-matcher/internal/store"
	"github.com/spigell/vacancy-matcher/internal/utils"
	"github.com/spigell/vacancy-matcher/internal/vacancy"
)

const (
	keyAttr    = "id"
	urlKeyAttr = "url_key"
)

// Tables names the DynamoDB table per entity.
type Tables struct {
	Vacancies string
	Resumes   string
	Matches   string
}

type Options struct {
	Region   string
	Endpoint string
	Tables   Tables
	// CreateTables creates missing tables on open.
	CreateTables bool
	// Credentials overrides the default chain. Local endpoints get static
	// dummy credentials when unset.
	Credentials aws.CredentialsProvider
}

type Store struct {
	client *dynamodb.Client
	tables Tables
	logger *zap.Logger
	now    func() time.Time
}

func Open(ctx context.Context, opts Options, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Tables.Vacancies == "" || opts.Tables.Resumes == "" || opts.Tables.Matches == "" {
		return nil, errors.New("dynamodb tables must be configured")
	}

	loaders := []func(*config.LoadOptions) error{}
	if opts.Region != "" {
		loaders = append(loaders, config.WithRegion(opts.Region))
	}
	creds := opts.Credentials
	if creds == nil && opts.Endpoint != "" {
		creds = credentials.NewStaticCredentialsProvider("local", "local", "")
	}
	if creds != nil {
		loaders = append(loaders, config.WithCredentialsProvider(creds))
	}

	cfg, err := config.LoadDefaultConfig(ctx, loaders...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := dynamodb.NewFromConfig(cfg, func(o *dynamodb.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
	})

	s := New(client, opts.Tables, logger)
	if opts.CreateTables {
		if err := s.CreateTables(ctx); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// New wraps an existing client.
func New(client *dynamodb.Client, tables Tables, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{client: client, tables: tables, logger: logger, now: time.Now}
}

// CreateTables creates each table with an id hash key and waits until it is active.
// Existing tables are left alone.
func (s *Store) CreateTables(ctx context.Context) error {
	for _, name := range []string{s.tables.Vacancies, s.tables.Resumes, s.tables.Matches} {
		_, err := s.client.CreateTable(ctx, &dynamodb.CreateTableInput{
			TableName: aws.String(name),
			AttributeDefinitions: []types.AttributeDefinition{{
				AttributeName: aws.String(keyAttr),
				AttributeType: types.ScalarAttributeTypeS,
			}},
			KeySchema: []types.KeySchemaElement{{
				AttributeName: aws.String(keyAttr),
				KeyType:       types.KeyTypeHash,
			}},
			BillingMode: types.BillingModePayPerRequest,
		})
		var inUse *types.ResourceInUseException
		if errors.As(err, &inUse) {
			s.logger.Debug("dynamodb table exists", zap.String("table", name))
			continue
		}
		if err != nil {
			return fmt.Errorf("create table %s: %w", name, err)
		}

		waiter := dynamodb.NewTableExistsWaiter(s.client)
		if err := waiter.Wait(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(name)}, 5*time.Minute); err != nil {
			return fmt.Errorf("wait for table %s: %w", name, err)
		}
		s.logger.Info("dynamodb table created", zap.String("table", name))
	}
	return nil
}

func (s *Store) Close() error { return nil }

// vacancyID derives the id from the normalized URL so that a conditional put
// enforces URL uniqueness.
func vacancyID(urlKey string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(urlKey)).String()
}

func matchID(vacancyID, resumeID string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(vacancyID+"/"+resumeID)).String()
}

func (s *Store) KnownURLs(ctx context.Context) (map[string]struct{}, error) {
	proj := expression.NamesList(expression.Name(urlKeyAttr))
	expr, err := expression.NewBuilder().WithProjection(proj).Build()
	if err != nil {
		return nil, fmt.Errorf("build projection: %w", err)
	}

	items, err := s.scan(ctx, s.tables.Vacancies, expr, true)
	if err != nil {
		return nil, err
	}

	known := make(map[string]struct{}, len(items))
	for _, item := range items {
		if av, ok := item[urlKeyAttr].(*types.AttributeValueMemberS); ok && av.Value != "" {
			known[av.Value] = struct{}{}
		}
	}
	return known, nil
}

func (s *Store) SaveVacancy(ctx context.Context, v *vacancy.Vacancy) (*vacancy.Vacancy, error) {
	key := utils.NormalizeURL(v.URL)
	if key == "" {
		return nil, errors.New("vacancy url is empty")
	}

	stored := *v
	stored.ID = vacancyID(key)
	if stored.Status == "" {
		stored.Status = vacancy.StatusNew
	}
	if stored.ScrapedAt.IsZero() {
		stored.ScrapedAt = s.now().UTC()
	}

	item, err := marshal(&stored)
	if err != nil {
		return nil, err
	}
	item[urlKeyAttr] = &types.AttributeValueMemberS{Value: key}

	expr, err := expression.NewBuilder().WithCondition(expression.AttributeNotExists(expression.Name(keyAttr))).Build()
	if err != nil {
		return nil, fmt.Errorf("build condition: %w", err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                 aws.String(s.tables.Vacancies),
		Item:                      item,
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	var exists *types.ConditionalCheckFailedException
	if errors.As(err, &exists) {
		s.logger.Debug("vacancy already stored", zap.String("vacancy_url", key))
		return s.GetVacancy(ctx, stored.ID)
	}
	if err != nil {
		return nil, fmt.Errorf("put vacancy %s: %w", v.URL, err)
	}
	return &stored, nil
}

func (s *Store) GetVacancy(ctx context.Context, id string) (*vacancy.Vacancy, error) {
	var v vacancy.Vacancy
	if err := s.get(ctx, s.tables.Vacancies, id, &v); err != nil {
		return nil, fmt.Errorf("vacancy %s: %w", id, err)
	}
	return &v, nil
}

func (s *Store) ListVacancies(ctx context.Context, opts store.ListOptions) ([]*vacancy.Vacancy, error) {
	var filter *expression.ConditionBuilder
	if opts.Status != "" {
		cond := expression.Name("status").Equal(expression.Value(opts.Status))
		filter = &cond
	}

	items, err := s.scanFiltered(ctx, s.tables.Vacancies, filter)
	if err != nil {
		return nil, err
	}

	out := make([]*vacancy.Vacancy, 0, len(items))
	for _, item := range items {
		var v vacancy.Vacancy
		if err := unmarshal(item, &v); err != nil {
			return nil, err
		}
		out = append(out, &v)
	}
	return store.PageVacancies(out, opts), nil
}

func (s *Store) UpdateVacancy(ctx context.Context, id string, patch vacancy.VacancyPatch) (*vacancy.Vacancy, error) {
	fields := patch.Fields()
	fields["updated_at"] = s.now().UTC()

	var v vacancy.Vacancy
	if err := s.update(ctx, s.tables.Vacancies, id, setAll(fields), &v); err != nil {
		return nil, fmt.Errorf("vacancy %s: %w", id, err)
	}
	return &v, nil
}

func (s *Store) SaveResume(ctx context.Context, r *vacancy.Resume) (*vacancy.Resume, error) {
	stored := *r
	stored.ID = uuid.NewString()
	stored.CreatedAt = s.now().UTC()
	stored.UpdatedAt = stored.CreatedAt

	item, err := marshal(&stored)
	if err != nil {
		return nil, err
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tables.Resumes),
		Item:      item,
	})
	if err != nil {
		return nil, fmt.Errorf("put resume %q: %w", r.Name, err)
	}
	return &stored, nil
}

func (s *Store) GetResume(ctx context.Context, id string) (*vacancy.Resume, error) {
	var r vacancy.Resume
	if err := s.get(ctx, s.tables.Resumes, id, &r); err != nil {
		return nil, fmt.Errorf("resume %s: %w", id, err)
	}
	return &r, nil
}

func (s *Store) ListResumes(ctx context.Context, opts store.ListOptions) ([]*vacancy.Resume, error) {
	items, err := s.listResumes(ctx, opts.ActiveOnly)
	if err != nil {
		return nil, err
	}
	return store.PageResumes(items, opts), nil
}

func (s *Store) listResumes(ctx context.Context, activeOnly bool) ([]*vacancy.Resume, error) {
	var filter *expression.ConditionBuilder
	if activeOnly {
		cond := expression.Name("active").Equal(expression.Value(true))
		filter = &cond
	}

	items, err := s.scanFiltered(ctx, s.tables.Resumes, filter)
	if err != nil {
		return nil, err
	}

	out := make([]*vacancy.Resume, 0, len(items))
	for _, item := range items {
		var r vacancy.Resume
		if err := unmarshal(item, &r); err != nil {
			return nil, err
		}
		out = append(out, &r)
	}
	return out, nil
}

func (s *Store) UpdateResume(ctx context.Context, id string, patch vacancy.ResumePatch) (*vacancy.Resume, error) {
	current, err := s.GetResume(ctx, id)
	if err != nil {
		return nil, err
	}

	fields := patch.Fields()
	fields["updated_at"] = s.now().UTC()
	update := setAll(fields)
	if patch.TextChanged(current) {
		update = update.Remove(expression.Name("embedding"))
	}

	var r vacancy.Resume
	if err := s.update(ctx, s.tables.Resumes, id, update, &r); err != nil {
		return nil, fmt.Errorf("resume %s: %w", id, err)
	}
	return &r, nil
}

func (s *Store) SetResumeEmbedding(ctx context.Context, id string, embedding []float32) error {
	update := expression.Set(expression.Name("embedding"), expression.Value(embedding))
	var r vacancy.Resume
	if err := s.update(ctx, s.tables.Resumes, id, update, &r); err != nil {
		return fmt.Errorf("resume %s: %w", id, err)
	}
	return nil
}

// NearestResumes ranks in process; DynamoDB has no vector search.
func (s *Store) NearestResumes(ctx context.Context, embedding []float32, limit int) ([]store.ResumeHit, error) {
	candidates, err := s.listResumes(ctx, true)
	if err != nil {
		return nil, err
	}
	return store.RankResumes(embedding, candidates, limit), nil
}

// SaveMatch writes the evaluation fields and only initialises status and
// created_at on first insert.
func (s *Store) SaveMatch(ctx context.Context, m *vacancy.Match) (*vacancy.Match, error) {
	status := m.Status
	if status == "" {
		status = vacancy.MatchPending
	}

	update := setAll(map[string]any{
		"vacancy_id": m.VacancyID,
		"resume_id":  m.ResumeID,
		"score":      m.Score,
		"fit":        m.Fit,
		"reason":     m.Reason,
		"message":    m.Message,
		"similarity": m.Similarity,
		"error":      m.Error,
	}).
		Set(expression.Name("status"), expression.IfNotExists(expression.Name("status"), expression.Value(status))).
		Set(expression.Name("created_at"), expression.IfNotExists(expression.Name("created_at"), expression.Value(s.now().UTC())))

	expr, err := expression.NewBuilder().WithUpdate(update).Build()
	if err != nil {
		return nil, fmt.Errorf("build match update: %w", err)
	}

	id := matchID(m.VacancyID, m.ResumeID)
	out, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(s.tables.Matches),
		Key:                       itemKey(id),
		UpdateExpression:          expr.Update(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ReturnValues:              types.ReturnValueAllNew,
	})
	if err != nil {
		return nil, fmt.Errorf("upsert match %s/%s: %w", m.VacancyID, m.ResumeID, err)
	}

	var saved vacancy.Match
	if err := unmarshal(out.Attributes, &saved); err != nil {
		return nil, err
	}
	return &saved, nil
}

func (s *Store) ListMatches(ctx context.Context, filter store.MatchFilter) ([]*vacancy.Match, error) {
	conds := []expression.ConditionBuilder{}
	if filter.VacancyID != "" {
		conds = append(conds, expression.Name("vacancy_id").Equal(expression.Value(filter.VacancyID)))
	}
	if filter.ResumeID != "" {
		conds = append(conds, expression.Name("resume_id").Equal(expression.Value(filter.ResumeID)))
	}
	if filter.Status != "" {
		conds = append(conds, expression.Name("status").Equal(expression.Value(filter.Status)))
	}

	var cond *expression.ConditionBuilder
	switch len(conds) {
	case 0:
	case 1:
		cond = &conds[0]
	default:
		joined := expression.And(conds[0], conds[1], conds[2:]...)
		cond = &joined
	}

	items, err := s.scanFiltered(ctx, s.tables.Matches, cond)
	if err != nil {
		return nil, err
	}

	out := make([]*vacancy.Match, 0, len(items))
	for _, item := range items {
		var m vacancy.Match
		if err := unmarshal(item, &m); err != nil {
			return nil, err
		}
		out = append(out, &m)
	}
	return store.PageMatches(out, filter), nil
}

func (s *Store) UpdateMatch(ctx context.Context, id string, patch vacancy.MatchPatch) (*vacancy.Match, error) {
	if err := patch.Validate(); err != nil {
		return nil, err
	}

	var m vacancy.Match
	update := expression.Set(expression.Name("status"), expression.Value(*patch.Status))
	if err := s.update(ctx, s.tables.Matches, id, update, &m); err != nil {
		return nil, fmt.Errorf("match %s: %w", id, err)
	}
	return &m, nil
}
