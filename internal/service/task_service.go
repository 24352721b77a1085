package service

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"time"

	"github.com/Torqued-codes/App/internal/cache"
	dom "github.com/Torqued-codes/App/internal/domain"
	"github.com/Torqued-codes/App/internal/repo"

	"golang.org/x/sync/singleflight"
)

var ErrNotFound = errors.New("not found")

// listLoadTimeout bounds a shared list load. The load runs detached from the
// request that started it so one caller hanging up does not fail the others.
const listLoadTimeout = 5 * time.Second

type TaskService struct {
	repo  repo.TaskRepo
	cache *cache.TaskCache
	sf    singleflight.Group
}

// NewTaskService creates a TaskService. If c is nil, caching is disabled.
func NewTaskService(r repo.TaskRepo, c *cache.TaskCache) *TaskService {
	return &TaskService{repo: r, cache: c}
}

// List never fails: a storage error is logged and reported as no tasks.
func (s *TaskService) List(ctx context.Context) []dom.Task {
	list, err := s.list(ctx)
	if err != nil {
		log.Printf("list tasks: %v", err)
		return []dom.Task{}
	}
	if list == nil {
		return []dom.Task{}
	}
	return list
}

func (s *TaskService) list(ctx context.Context) ([]dom.Task, error) {
	if s.cache == nil {
		return s.repo.List(ctx)
	}
	v, err, _ := s.sf.Do("list", func() (interface{}, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), listLoadTimeout)
		defer cancel()
		return s.loadList(loadCtx)
	})
	if err != nil {
		return nil, err
	}
	return v.([]dom.Task), nil
}

// loadList serves the list from cache, falling back to storage. The storage
// result is cached only if no write happened since the load began.
func (s *TaskService) loadList(ctx context.Context) ([]dom.Task, error) {
	gen, err := s.cache.Generation(ctx)
	if err != nil {
		log.Printf("cache generation: %v", err)
		return s.repo.List(ctx)
	}
	if list, err := s.cache.GetList(ctx); err == nil && list != nil {
		return list, nil
	}
	list, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.cache.SetList(ctx, gen, list); err != nil {
		log.Printf("cache set list: %v", err)
	}
	return list, nil
}

func (s *TaskService) Create(ctx context.Context, title string) (dom.Task, error) {
	t, err := s.repo.Create(ctx, title)
	if err != nil {
		return dom.Task{}, err
	}
	s.invalidateCache(ctx)
	return t, nil
}

func (s *TaskService) Get(ctx context.Context, id int64) (dom.Task, error) {
	t, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return dom.Task{}, ErrNotFound
		}
		return dom.Task{}, err
	}
	return t, nil
}

// Update applies patch to task id and returns the merged row.
func (s *TaskService) Update(ctx context.Context, id int64, patch dom.TaskPatch) (dom.Task, error) {
	t, err := s.repo.Patch(ctx, id, patch)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return dom.Task{}, ErrNotFound
		}
		return dom.Task{}, err
	}
	s.invalidateCache(ctx)
	return t, nil
}

// Delete removes task id. A missing id is not an error.
func (s *TaskService) Delete(ctx context.Context, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.invalidateCache(ctx)
	return nil
}

func (s *TaskService) invalidateCache(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx); err != nil {
		log.Printf("cache invalidate: %v", err)
	}
	// Loads already in flight saw the old rows; later callers must not join them.
	s.sf.Forget("list")
}
