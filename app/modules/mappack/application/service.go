package mappackservice

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	mappackdomain "github.com/edelkas/inne-sub000/app/modules/mappack/domain"
	mappackdb "github.com/edelkas/inne-sub000/app/modules/mappack/infrastructure/repositories"
	"github.com/edelkas/inne-sub000/pkg/attr"
	"github.com/edelkas/inne-sub000/pkg/npp"
	"github.com/edelkas/inne-sub000/pkg/observability/metrics"
	"github.com/edelkas/inne-sub000/pkg/results"
	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// HashCache memoizes the stored hash set of each highscoreable.
type HashCache interface {
	Get(kind npp.Kind, id int64) (mappackdomain.HashSet, bool)
	Set(kind npp.Kind, id int64, set mappackdomain.HashSet)
	Clear()
}

// Options configure a MappackService.
type Options struct {
	// HashPassword salts every map hash. Without it hashing is disabled.
	HashPassword string
	// Root is the directory holding the NNN_code_V mappack folders.
	Root string
}

// MappackService implements the Service interface.
type MappackService struct {
	repo    mappackdb.Repository
	logger  *slog.Logger
	metrics metrics.MappackMetrics
	tracer  trace.Tracer
	db      *bun.DB
	cache   HashCache
	opts    Options
}

// NewMappackService creates a new MappackService. A nil cache disables hash
// memoization.
func NewMappackService(
	repo mappackdb.Repository,
	logger *slog.Logger,
	metrics metrics.MappackMetrics,
	tracer trace.Tracer,
	db *bun.DB,
	cache HashCache,
	opts Options,
) *MappackService {
	if logger == nil {
		logger = slog.Default()
	}
	return &MappackService{
		repo:    repo,
		logger:  logger,
		metrics: metrics,
		tracer:  tracer,
		db:      db,
		cache:   cache,
		opts:    opts,
	}
}

var _ Service = (*MappackService)(nil)

// GetMappack resolves a mappack by code.
func (s *MappackService) GetMappack(ctx context.Context, code string) (*mappackdomain.Pack, error) {
	m, err := s.repo.GetMappackByCode(ctx, nil, code)
	if err != nil {
		return nil, notFound("GetMappack", err, "mappack %q", code)
	}
	return toPack(m), nil
}

func (s *MappackService) ListMappacks(ctx context.Context) ([]mappackdomain.Pack, error) {
	packs, err := s.repo.ListMappacks(ctx, nil)
	if err != nil {
		return nil, err
	}
	out := make([]mappackdomain.Pack, 0, len(packs))
	for i := range packs {
		out = append(out, *toPack(&packs[i]))
	}
	return out, nil
}

func (s *MappackService) FindHighscoreable(ctx context.Context, mappackID int64, kind npp.Kind, innerID int) (*mappackdomain.Highscoreable, error) {
	h, err := s.repo.GetHighscoreable(ctx, nil, mappackID, kind, innerID)
	if err != nil {
		return nil, notFound("FindHighscoreable", err, "%s %d of mappack %d", kind, innerID, mappackID)
	}
	return toHighscoreable(h), nil
}

func (s *MappackService) GetHighscoreable(ctx context.Context, kind npp.Kind, id int64) (*mappackdomain.Highscoreable, error) {
	h, err := s.repo.GetHighscoreableByID(ctx, nil, kind, id)
	if err != nil {
		return nil, notFound("GetHighscoreable", err, "%s %d", kind, id)
	}
	return toHighscoreable(h), nil
}

func (s *MappackService) ListHighscoreables(ctx context.Context, mappackID int64, kind npp.Kind) ([]mappackdomain.Highscoreable, error) {
	hs, err := s.repo.ListHighscoreables(ctx, nil, mappackID, kind)
	if err != nil {
		return nil, err
	}
	out := make([]mappackdomain.Highscoreable, 0, len(hs))
	for i := range hs {
		out = append(out, *toHighscoreable(&hs[i]))
	}
	return out, nil
}

// LoadLevel decodes the stored map of a level.
func (s *MappackService) LoadLevel(ctx context.Context, levelID int64, version int) (*mappackdomain.Level, error) {
	h, err := s.repo.GetHighscoreableByID(ctx, nil, npp.Level, levelID)
	if err != nil {
		return nil, notFound("LoadLevel", err, "level %d", levelID)
	}
	return s.loadLevel(ctx, nil, h, version)
}

// DumpLevels returns the userlevel dump of each level, in ID order, as fed to
// the simulator.
func (s *MappackService) DumpLevels(ctx context.Context, h *mappackdomain.Highscoreable) ([][]byte, error) {
	dumps := make([][]byte, 0, h.Kind.Size())
	for _, id := range h.Levels() {
		l, err := s.LoadLevel(ctx, id, 0)
		if err != nil {
			return nil, err
		}
		dumps = append(dumps, mappackdomain.DumpLevel(l.Tiles, l.Objects, nil, mappackdomain.DumpOptions{
			Mode:  l.Mode,
			Title: l.Title,
		}))
	}
	return dumps, nil
}

func (s *MappackService) loadLevel(ctx context.Context, db bun.IDB, h *mappackdb.Highscoreable, version int) (*mappackdomain.Level, error) {
	tileData, objectData, err := s.repo.GetMapData(ctx, db, h.ID, version)
	if err != nil {
		return nil, notFound("LoadLevel", err, "map data of level %d v%d", h.ID, version)
	}
	tiles, err := mappackdomain.DecodeTiles(tileData)
	if err != nil {
		return nil, err
	}
	objects, err := mappackdomain.DecodeObjects(objectData)
	if err != nil {
		return nil, err
	}
	return &mappackdomain.Level{
		InnerID: h.InnerID,
		Mode:    h.Mode,
		Title:   h.Longname,
		Tiles:   tiles,
		Objects: objects,
	}, nil
}

// notFound maps repository misses onto the shared error taxonomy.
func notFound(op string, err error, format string, args ...any) error {
	if errors.Is(err, mappackdb.ErrNotFound) {
		return npp.Errorf("mappack."+op, npp.ErrNotFound, format, args...)
	}
	return fmt.Errorf("mappack.%s: %w", op, err)
}

func toPack(m *mappackdb.Mappack) *mappackdomain.Pack {
	return &mappackdomain.Pack{
		ID:         m.ID,
		Code:       m.Code,
		Version:    m.Version,
		Name:       m.Name,
		Authors:    m.Authors,
		Date:       m.Date,
		Enabled:    m.Enabled,
		Fractional: m.Fractional,
	}
}

func toHighscoreable(h *mappackdb.Highscoreable) *mappackdomain.Highscoreable {
	return &mappackdomain.Highscoreable{
		Kind:        h.Kind,
		ID:          h.ID,
		InnerID:     h.InnerID,
		MappackID:   h.MappackID,
		Mode:        h.Mode,
		Tab:         h.Tab,
		ParentID:    h.ParentID,
		Name:        h.Name,
		Longname:    h.Longname,
		Gold:        h.Gold,
		Completions: h.Completions,
	}
}

type operationFunc[S any, F any] func(ctx context.Context) (results.OperationResult[S, F], error)

func withTelemetry[S any, F any](
	s *MappackService,
	ctx context.Context,
	operationName string,
	identifier string,
	op operationFunc[S, F],
) (result results.OperationResult[S, F], err error) {
	var span trace.Span
	if s.tracer != nil {
		ctx, span = s.tracer.Start(ctx, operationName, trace.WithAttributes(
			attribute.String("operation", operationName),
			attribute.String("identifier", identifier),
		))
	} else {
		span = trace.SpanFromContext(ctx)
	}
	defer span.End()

	if s.metrics != nil {
		s.metrics.RecordOperationAttempt(ctx, operationName)
	}

	startTime := time.Now()
	defer func() {
		if s.metrics != nil {
			s.metrics.RecordOperationDuration(ctx, operationName, time.Since(startTime))
		}
	}()

	s.logger.InfoContext(ctx, operationName+" triggered", attr.ExtractCorrelationID(ctx), attr.String("identifier", identifier))

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in %s: %v", operationName, r)
			s.logger.ErrorContext(ctx, "Critical panic recovered",
				attr.ExtractCorrelationID(ctx),
				attr.String("identifier", identifier),
				attr.Error(err),
			)
			if s.metrics != nil {
				s.metrics.RecordOperationFailure(ctx, operationName)
			}
			span.RecordError(err)
			result = results.OperationResult[S, F]{}
		}
	}()

	result, err = op(ctx)
	if err != nil {
		wrappedErr := fmt.Errorf("%s: %w", operationName, err)
		s.logger.ErrorContext(ctx, "Operation failed with error",
			attr.ExtractCorrelationID(ctx),
			attr.String("operation", operationName),
			attr.String("identifier", identifier),
			attr.Error(wrappedErr),
		)
		if s.metrics != nil {
			s.metrics.RecordOperationFailure(ctx, operationName)
		}
		span.RecordError(wrappedErr)
		return result, wrappedErr
	}

	if result.IsFailure() {
		s.logger.WarnContext(ctx, "Operation returned failure result",
			attr.ExtractCorrelationID(ctx),
			attr.String("operation", operationName),
			attr.String("identifier", identifier),
			attr.Any("failure_payload", *result.Failure),
		)
	} else {
		s.logger.InfoContext(ctx, operationName+" completed successfully",
			attr.ExtractCorrelationID(ctx),
			attr.String("identifier", identifier),
		)
	}

	if s.metrics != nil {
		s.metrics.RecordOperationSuccess(ctx, operationName)
	}
	return result, nil
}

func runInTx[S any, F any](
	s *MappackService,
	ctx context.Context,
	fn func(ctx context.Context, db bun.IDB) (results.OperationResult[S, F], error),
) (results.OperationResult[S, F], error) {
	if s.db == nil {
		return fn(ctx, nil)
	}

	var result results.OperationResult[S, F]
	err := s.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		var txErr error
		result, txErr = fn(ctx, tx)
		return txErr
	})
	return result, err
}
