package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/PsiTechC/medai-billing/internal/cache"
	catalogdomain "github.com/PsiTechC/medai-billing/internal/catalog/domain"
	"github.com/PsiTechC/medai-billing/pkg/repository"
)

const planNameCacheTTL = 30 * time.Second

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
}

type Service struct {
	db  *gorm.DB
	log *zap.Logger

	genID       *snowflake.Node
	servicerepo repository.Repository[catalogdomain.MediaService]
	planrepo    repository.Repository[catalogdomain.Plan]
	nameCache   *cache.TTLCache[string, catalogdomain.Plan]
}

func NewService(p Params) catalogdomain.Service {
	return &Service{
		db:  p.DB,
		log: p.Log.Named("catalog.service"),

		genID:       p.GenID,
		servicerepo: repository.ProvideStore[catalogdomain.MediaService](p.DB),
		planrepo:    repository.ProvideStore[catalogdomain.Plan](p.DB),
		nameCache:   cache.NewTTLCache[string, catalogdomain.Plan](),
	}
}

func (s *Service) CreateService(ctx context.Context, name string) (*catalogdomain.MediaService, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, catalogdomain.ErrInvalidName
	}

	record := &catalogdomain.MediaService{
		ID:        s.genID.Generate(),
		Name:      name,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.servicerepo.Create(ctx, record); err != nil {
		return nil, err
	}
	return record, nil
}

func (s *Service) ListServices(ctx context.Context) ([]catalogdomain.MediaService, error) {
	rows, err := s.servicerepo.Find(ctx, &catalogdomain.MediaService{})
	if err != nil {
		return nil, err
	}
	services := make([]catalogdomain.MediaService, 0, len(rows))
	for _, row := range rows {
		if row != nil {
			services = append(services, *row)
		}
	}
	return services, nil
}

func (s *Service) GetService(ctx context.Context, serviceID string) (*catalogdomain.MediaService, error) {
	id, err := parseID(serviceID)
	if err != nil {
		return nil, catalogdomain.ErrInvalidID
	}
	record, err := s.servicerepo.FindOne(ctx, &catalogdomain.MediaService{ID: id})
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, catalogdomain.ErrServiceNotFound
	}
	return record, nil
}

func (s *Service) CreatePlan(ctx context.Context, input catalogdomain.PlanInput) (*catalogdomain.Plan, error) {
	if err := catalogdomain.ValidateInput(input); err != nil {
		return nil, err
	}

	service, err := s.GetService(ctx, input.ServiceID)
	if err != nil {
		return nil, err
	}

	userID, err := parseOptionalID(input.UserID)
	if err != nil {
		return nil, catalogdomain.ErrInvalidID
	}

	now := time.Now().UTC()
	record := &catalogdomain.Plan{
		ID:             s.genID.Generate(),
		ServiceID:      service.ID,
		UserID:         userID,
		Name:           strings.TrimSpace(input.Name),
		PricePerMinute: input.PricePerMinute,
		RangeStart:     input.RangeStart,
		RangeEnd:       normalizedRangeEnd(input),
		IsLast:         input.IsLast,
		MinutesGranted: input.MinutesGranted,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.planrepo.Create(ctx, record); err != nil {
		return nil, err
	}

	s.nameCache.Delete(planNameKey(record.Name))
	return record, nil
}

func (s *Service) UpdatePlan(ctx context.Context, planID string, input catalogdomain.PlanInput) (*catalogdomain.Plan, error) {
	if err := catalogdomain.ValidateInput(input); err != nil {
		return nil, err
	}

	record, err := s.GetPlan(ctx, planID)
	if err != nil {
		return nil, err
	}

	service, err := s.GetService(ctx, input.ServiceID)
	if err != nil {
		return nil, err
	}

	userID, err := parseOptionalID(input.UserID)
	if err != nil {
		return nil, catalogdomain.ErrInvalidID
	}

	previousName := record.Name
	record.ServiceID = service.ID
	record.UserID = userID
	record.Name = strings.TrimSpace(input.Name)
	record.PricePerMinute = input.PricePerMinute
	record.RangeStart = input.RangeStart
	record.RangeEnd = normalizedRangeEnd(input)
	record.IsLast = input.IsLast
	record.MinutesGranted = input.MinutesGranted
	record.UpdatedAt = time.Now().UTC()

	if err := s.planrepo.Save(ctx, record); err != nil {
		return nil, err
	}

	s.nameCache.Delete(planNameKey(previousName))
	s.nameCache.Delete(planNameKey(record.Name))
	return record, nil
}

func (s *Service) DeletePlan(ctx context.Context, planID string) error {
	record, err := s.GetPlan(ctx, planID)
	if err != nil {
		return err
	}
	if err := s.planrepo.Delete(ctx, record); err != nil {
		return err
	}
	s.nameCache.Delete(planNameKey(record.Name))
	return nil
}

func (s *Service) GetPlan(ctx context.Context, planID string) (*catalogdomain.Plan, error) {
	id, err := parseID(planID)
	if err != nil {
		return nil, catalogdomain.ErrInvalidID
	}
	record, err := s.planrepo.FindOne(ctx, &catalogdomain.Plan{ID: id})
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, catalogdomain.ErrPlanNotFound
	}
	return record, nil
}

func (s *Service) ListForService(ctx context.Context, serviceID, userID string) ([]catalogdomain.Plan, error) {
	id, err := parseID(serviceID)
	if err != nil {
		return nil, catalogdomain.ErrInvalidID
	}

	query := s.db.WithContext(ctx).Where("service_id = ?", id)
	if strings.TrimSpace(userID) == "" {
		query = query.Where("user_id IS NULL")
	} else {
		scopeID, err := parseID(userID)
		if err != nil {
			return nil, catalogdomain.ErrInvalidID
		}
		query = query.Where("user_id = ?", scopeID)
	}

	var plans []catalogdomain.Plan
	if err := query.Order("range_start ASC").Find(&plans).Error; err != nil {
		return nil, err
	}
	return plans, nil
}

func (s *Service) FindPlanByName(ctx context.Context, name string) (*catalogdomain.Plan, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, catalogdomain.ErrInvalidName
	}

	if cached, ok := s.nameCache.Get(planNameKey(name)); ok {
		plan := cached
		return &plan, nil
	}

	var plan catalogdomain.Plan
	err := s.db.WithContext(ctx).
		Where("name = ? AND user_id IS NULL", name).
		First(&plan).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, catalogdomain.ErrPlanNotFound
		}
		return nil, err
	}

	s.nameCache.Set(planNameKey(name), plan, planNameCacheTTL)
	return &plan, nil
}

func normalizedRangeEnd(input catalogdomain.PlanInput) *float64 {
	if input.IsLast {
		return nil
	}
	return input.RangeEnd
}

func planNameKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, catalogdomain.ErrInvalidID
	}
	return id, nil
}

func parseOptionalID(value string) (*snowflake.ID, error) {
	if strings.TrimSpace(value) == "" {
		return nil, nil
	}
	id, err := parseID(value)
	if err != nil {
		return nil, err
	}
	return &id, nil
}
