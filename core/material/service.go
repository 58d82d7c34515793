package material

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/mystudenthub/backend/core"
	"github.com/mystudenthub/backend/core/access"
)

// View is the cache view holding material query results.
const View = access.CollectionMaterials

var (
	// errors
	ErrNotFound    = errors.New("material not found")
	errEmptyUpdate = errors.New("nothing to update")
)

type (
	Repository interface {
		Create(ctx context.Context, m Material) error
		Get(ctx context.Context, id string) (Material, error)
		// Update applies the set fields of upd and stamps updatedAt. It returns ErrNotFound if id does not exist.
		Update(ctx context.Context, id string, upd UpdateMaterial, updatedAt time.Time) (Material, error)
		// Delete removes id. Deleting a missing id is not an error.
		Delete(ctx context.Context, id string) error
		Query(ctx context.Context, filter QueryFilter, ordering []core.DBOrdering) ([]Material, error)
	}

	// Author is the user a material is attributed to.
	Author struct {
		UID  string
		Name string
	}

	Service struct {
		repo     Repository
		cache    core.ViewCache
		enforcer *access.Enforcer
		validate *validator.Validate
		logger   core.Logger
		nowFunc  func() time.Time
	}
)

func NewService(
	repo Repository,
	cache core.ViewCache,
	enforcer *access.Enforcer,
	validate *validator.Validate,
	logger core.Logger,
) *Service {
	return &Service{
		repo:     repo,
		cache:    cache,
		enforcer: enforcer,
		validate: validate,
		logger:   logger,
		nowFunc:  core.NowFunc,
	}
}

// Create stores a new material written by author. createdAt and updatedAt are both set to the server time.
func (svc *Service) Create(ctx context.Context, sub access.Subject, author Author, nm NewMaterial) (Material, error) {
	if err := nm.Validate(svc.validate); err != nil {
		return Material{}, err
	}
	id := uuid.NewString()
	res := access.Resource{
		Collection: access.CollectionMaterials,
		ID:         id,
		OwnerUID:   author.UID,
		Data:       newMaterialData(nm),
	}
	if err := svc.enforcer.Check(ctx, sub, core.OpCreate, res); err != nil {
		return Material{}, err
	}

	now := svc.nowFunc()
	m := Material{
		ID:          id,
		Title:       nm.Title,
		Description: nm.Description,
		URL:         nm.URL,
		DegreeID:    nm.DegreeID,
		StreamID:    nm.StreamID,
		Semester:    nm.Semester,
		Subject:     nm.Subject,
		AuthorID:    author.UID,
		AuthorName:  author.Name,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := svc.repo.Create(ctx, m); err != nil {
		return Material{}, &core.PersistenceError{Err: errors.Wrap(err, "creating material")}
	}
	svc.invalidate(ctx)
	return m, nil
}

// Update changes only the fields set in upd and stamps updatedAt.
func (svc *Service) Update(ctx context.Context, sub access.Subject, id string, upd UpdateMaterial) (Material, error) {
	if err := upd.Validate(svc.validate); err != nil {
		return Material{}, err
	}
	if upd.IsEmpty() {
		return Material{}, core.NewValidationError(errEmptyUpdate)
	}
	current, err := svc.repo.Get(ctx, id)
	if err != nil {
		return Material{}, err
	}
	res := access.Resource{
		Collection: access.CollectionMaterials,
		ID:         id,
		OwnerUID:   current.AuthorID,
		Data:       upd.Data(),
	}
	if err = svc.enforcer.Check(ctx, sub, core.OpUpdate, res); err != nil {
		return Material{}, err
	}

	m, err := svc.repo.Update(ctx, id, upd, svc.nowFunc())
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return Material{}, err
		}
		return Material{}, &core.PersistenceError{Err: errors.Wrap(err, "updating material")}
	}
	svc.invalidate(ctx)
	return m, nil
}

// Delete removes a material. A material that does not exist counts as deleted.
func (svc *Service) Delete(ctx context.Context, sub access.Subject, id string) error {
	res := access.Resource{Collection: access.CollectionMaterials, ID: id}
	current, err := svc.repo.Get(ctx, id)
	switch {
	case err == nil:
		res.OwnerUID = current.AuthorID
	case errors.Cause(err) == ErrNotFound:
		// checked as if owned by sub
		res.OwnerUID = sub.UID
	default:
		return err
	}
	if err = svc.enforcer.Check(ctx, sub, core.OpDelete, res); err != nil {
		return err
	}
	if err = svc.repo.Delete(ctx, id); err != nil {
		return &core.PersistenceError{Err: errors.Wrap(err, "deleting material")}
	}
	svc.invalidate(ctx)
	return nil
}

func (svc *Service) Get(ctx context.Context, sub access.Subject, id string) (Material, error) {
	res := access.Resource{Collection: access.CollectionMaterials, ID: id}
	if err := svc.enforcer.Check(ctx, sub, core.OpGet, res); err != nil {
		return Material{}, err
	}
	return svc.repo.Get(ctx, id)
}

// Query lists materials matching filter. Results are served from the view cache until the next write.
func (svc *Service) Query(ctx context.Context, sub access.Subject, filter QueryFilter, ordering []core.DBOrdering) ([]Material, error) {
	if err := svc.enforcer.Check(ctx, sub, core.OpList, access.Resource{Collection: access.CollectionMaterials}); err != nil {
		return nil, err
	}
	filter.Clean()
	key := cacheKey(filter, ordering)

	// version is read before the repository so a write landing in between invalidates our Set.
	var version int64
	cacheable := svc.cache != nil
	if cacheable {
		var cached []Material
		v, found, err := svc.cache.Get(ctx, View, key, &cached)
		switch {
		case err != nil:
			svc.logger.Warn(fmt.Sprintf("materials: reading view cache: %v", err), err)
			cacheable = false
		case found:
			return cached, nil
		default:
			version = v
		}
	}

	materials, err := svc.repo.Query(ctx, filter, ordering)
	if err != nil {
		return nil, err
	}
	if materials == nil {
		materials = []Material{}
	}
	if cacheable {
		if err = svc.cache.Set(ctx, View, key, version, materials); err != nil {
			svc.logger.Warn(fmt.Sprintf("materials: writing view cache: %v", err), err)
		}
	}
	return materials, nil
}

// invalidate drops cached query results. A failure only leaves stale reads until the cache entries expire.
func (svc *Service) invalidate(ctx context.Context) {
	if svc.cache == nil {
		return
	}
	if err := svc.cache.Invalidate(ctx, View); err != nil {
		svc.logger.Warn(fmt.Sprintf("materials: invalidating view cache: %v", err), err)
	}
}

func cacheKey(filter QueryFilter, ordering []core.DBOrdering) string {
	key := fmt.Sprintf("d=%s|s=%s|sem=%d|sub=%s|a=%s|o=", filter.DegreeID, filter.StreamID, filter.Semester, filter.Subject, filter.AuthorID)
	for i, ord := range ordering {
		if i > 0 {
			key += ","
		}
		key += ord.String()
	}
	return key
}

func newMaterialData(nm NewMaterial) map[string]interface{} {
	return map[string]interface{}{
		"title":    nm.Title,
		"url":      nm.URL,
		"degreeId": nm.DegreeID,
		"streamId": nm.StreamID,
		"semester": nm.Semester,
		"subject":  nm.Subject,
	}
}
