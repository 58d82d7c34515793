package circle

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/mystudenthub/backend/core"
	"github.com/mystudenthub/backend/core/access"
)

var (
	// errors
	ErrNotFound = errors.New("circle not found")
)

type (
	Repository interface {
		Create(ctx context.Context, c Circle) error
		Get(ctx context.Context, id string) (Circle, error)
		// List returns every circle ordered by degree, stream, semester and name.
		List(ctx context.Context) ([]Circle, error)
	}

	Service struct {
		repo     Repository
		enforcer *access.Enforcer
		validate *validator.Validate
		nowFunc  func() time.Time
	}
)

func NewService(repo Repository, enforcer *access.Enforcer, validate *validator.Validate) *Service {
	return &Service{repo: repo, enforcer: enforcer, validate: validate, nowFunc: core.NowFunc}
}

func (svc *Service) Create(ctx context.Context, sub access.Subject, nc NewCircle) (Circle, error) {
	if err := nc.Validate(svc.validate); err != nil {
		return Circle{}, err
	}
	c := Circle{
		ID:        uuid.NewString(),
		Name:      nc.Name,
		DegreeID:  nc.DegreeID,
		StreamID:  nc.StreamID,
		Semester:  nc.Semester,
		CreatedAt: svc.nowFunc(),
	}
	res := access.Resource{
		Collection: access.CollectionCircles,
		ID:         c.ID,
		Data:       map[string]interface{}{"name": c.Name, "degreeId": c.DegreeID, "streamId": c.StreamID, "semester": c.Semester},
	}
	if err := svc.enforcer.Check(ctx, sub, core.OpCreate, res); err != nil {
		return Circle{}, err
	}
	if err := svc.repo.Create(ctx, c); err != nil {
		return Circle{}, &core.PersistenceError{Err: errors.Wrap(err, "creating circle")}
	}
	return c, nil
}

func (svc *Service) Get(ctx context.Context, sub access.Subject, id string) (Circle, error) {
	if err := svc.enforcer.Check(ctx, sub, core.OpGet, access.Resource{Collection: access.CollectionCircles, ID: id}); err != nil {
		return Circle{}, err
	}
	return svc.repo.Get(ctx, id)
}

func (svc *Service) List(ctx context.Context, sub access.Subject) ([]Circle, error) {
	if err := svc.enforcer.Check(ctx, sub, core.OpList, access.Resource{Collection: access.CollectionCircles}); err != nil {
		return nil, err
	}
	circles, err := svc.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	if circles == nil {
		circles = []Circle{}
	}
	return circles, nil
}

// Directory answers existence checks on circles for internal callers. It is not access checked.
type Directory struct {
	repo Repository
}

func NewDirectory(repo Repository) *Directory {
	return &Directory{repo: repo}
}

func (d *Directory) Exists(ctx context.Context, id string) (bool, error) {
	_, err := d.repo.Get(ctx, id)
	switch errors.Cause(err) {
	case nil:
		return true, nil
	case ErrNotFound:
		return false, nil
	default:
		return false, err
	}
}
