// Package projects applies property changes to projects. Every write is a
// read, decode, apply, encode cycle guarded by the project's version, and
// is retried a bounded number of times when another writer got there first.
package projects

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	config "gitlab.com/maplesense1/mpt.iot_panel/src/production/IOT.Config"
	logger "gitlab.com/maplesense1/mpt.iot_panel/src/production/IOT.Logger"
	api_models "gitlab.com/maplesense1/mpt.iot_panel/src/production/IOT.Models/api"
	panel_models "gitlab.com/maplesense1/mpt.iot_panel/src/production/IOT.Models/panel"
	properties "gitlab.com/maplesense1/mpt.iot_panel/src/production/IOT.Properties"
	interfaces "gitlab.com/maplesense1/mpt.iot_panel/src/production/IOT.Repository/Interfaces"
)

var (
	ErrProjectRequired = errors.New("project name is required")
	ErrInvalidName     = errors.New("invalid name")
)

// ControlNotifier is told about every change of a project's control values.
type ControlNotifier interface {
	PublishControl(ctx context.Context, project string, values map[string]interface{}) error
}

// Service implements project and property operations.
type Service struct {
	repo        interfaces.ProjectRepository
	reports     interfaces.ReportRepository
	notifier    ControlNotifier
	log         *logger.Logger
	maxAttempts int
	now         func() time.Time
}

func NewService(
	repo interfaces.ProjectRepository,
	reports interfaces.ReportRepository,
	notifier ControlNotifier,
	log *logger.Logger,
	cfg config.PropertiesConfig,
) *Service {
	attempts := cfg.MaxWriteAttempts
	if attempts < 1 {
		attempts = 1
	}
	return &Service{
		repo:        repo,
		reports:     reports,
		notifier:    notifier,
		log:         log.WithComponent("projects"),
		maxAttempts: attempts,
		now:         time.Now,
	}
}

// update loads a project, lets apply change its document and stores it
// with a version check. apply returns false when nothing needs writing.
func (s *Service) update(
	ctx context.Context,
	load func(ctx context.Context) (*panel_models.Project, error),
	apply func(p *panel_models.Project) (bool, error),
) (*panel_models.Project, error) {
	for attempt := 1; ; attempt++ {
		p, err := load(ctx)
		if err != nil {
			return nil, err
		}
		write, err := apply(p)
		if err != nil {
			return nil, err
		}
		if !write {
			return p, nil
		}

		version, err := s.repo.UpdateProperties(ctx, p.ID, p.Properties, p.Version)
		if err == nil {
			p.Version = version
			return p, nil
		}
		if !errors.Is(err, interfaces.ErrVersionConflict) || attempt >= s.maxAttempts {
			return nil, fmt.Errorf("project %q: %w", p.Name, err)
		}
		s.log.Logger.Debug().Str("project", p.Name).Int("attempt", attempt).Msg("Property write raced, retrying")
	}
}

func (s *Service) byName(name string) func(context.Context) (*panel_models.Project, error) {
	return func(ctx context.Context) (*panel_models.Project, error) { return s.repo.GetByName(ctx, name) }
}

func (s *Service) byID(id int64) func(context.Context) (*panel_models.Project, error) {
	return func(ctx context.Context) (*panel_models.Project, error) { return s.repo.GetByID(ctx, id) }
}

// ReportInputs applies a device report to the input properties of the
// named project and returns its current control values.
func (s *Service) ReportInputs(ctx context.Context, name string, values map[string]string, source string) (map[string]interface{}, error) {
	if name == "" {
		return nil, ErrProjectRequired
	}

	var control map[string]interface{}
	p, err := s.update(ctx, s.byName(name), func(p *panel_models.Project) (bool, error) {
		input, err := p.Properties.Decode(properties.Input)
		if err != nil {
			return false, err
		}
		ctrl, err := p.Properties.Decode(properties.Control)
		if err != nil {
			return false, err
		}
		updated, applied, err := properties.ApplyInput(input, values)
		if err != nil {
			return false, err
		}
		control = properties.Values(ctrl)
		if applied == 0 {
			return false, nil
		}
		p.Properties.Replace(properties.Input, updated)
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	s.record(ctx, p, values, control, source)
	return control, nil
}

func (s *Service) record(ctx context.Context, p *panel_models.Project, values map[string]string, control map[string]interface{}, source string) {
	if s.reports == nil {
		return
	}
	report := &panel_models.InputReport{
		ProjectID:  p.ID,
		Project:    p.Name,
		Source:     source,
		Values:     values,
		Control:    control,
		ReceivedAt: s.now().UTC(),
	}
	if err := s.reports.Insert(ctx, report); err != nil {
		s.log.WithProject(p.Name).ErrorWithError(err, "Failed to record input report")
	}
}

// UpdateControls applies an operator form to the control properties.
func (s *Service) UpdateControls(ctx context.Context, id int64, form map[string]string) (*panel_models.Project, []properties.Property, error) {
	var updated []properties.Property
	p, err := s.update(ctx, s.byID(id), func(p *panel_models.Project) (bool, error) {
		ctrl, err := p.Properties.Decode(properties.Control)
		if err != nil {
			return false, err
		}
		updated, err = properties.ApplyControl(ctrl, form)
		if err != nil {
			return false, err
		}
		p.Properties.Replace(properties.Control, updated)
		return true, nil
	})
	if err != nil {
		return nil, nil, err
	}

	s.notify(ctx, p.Name, updated)
	return p, updated, nil
}

func (s *Service) notify(ctx context.Context, project string, control []properties.Property) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.PublishControl(ctx, project, properties.Values(control)); err != nil {
		s.log.WithProject(project).ErrorWithError(err, "Failed to publish control values")
	}
}

// Properties returns both decoded namespaces of a project.
func (s *Service) Properties(ctx context.Context, id int64) (*panel_models.Project, []properties.Property, []properties.Property, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, nil, nil, err
	}
	input, err := p.Properties.Decode(properties.Input)
	if err != nil {
		return nil, nil, nil, err
	}
	control, err := p.Properties.Decode(properties.Control)
	if err != nil {
		return nil, nil, nil, err
	}
	return p, input, control, nil
}

func validName(name string, max int) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || len(name) > max {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return name, nil
}

// AddProperty adds a property holding the zero value of its type.
func (s *Service) AddProperty(ctx context.Context, id int64, req api_models.AddPropertyRequest) (*panel_models.Project, error) {
	ns, err := properties.ParseNamespace(req.Namespace)
	if err != nil {
		return nil, err
	}
	kind, err := properties.ParseKind(req.Type)
	if err != nil {
		return nil, err
	}
	name, err := validName(req.Name, 50)
	if err != nil {
		return nil, err
	}

	var current []properties.Property
	p, err := s.update(ctx, s.byID(id), func(p *panel_models.Project) (bool, error) {
		props, err := p.Properties.Decode(ns)
		if err != nil {
			return false, err
		}
		if properties.Index(props, name) >= 0 {
			return false, fmt.Errorf("%s property %q: %w", ns, name, interfaces.ErrDuplicate)
		}
		current = append(props, properties.New(name, kind))
		p.Properties.Replace(ns, current)
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	if ns == properties.Control {
		s.notify(ctx, p.Name, current)
	}
	return p, nil
}

// RemoveProperty deletes a property from a namespace.
func (s *Service) RemoveProperty(ctx context.Context, id int64, namespace, name string) (*panel_models.Project, error) {
	ns, err := properties.ParseNamespace(namespace)
	if err != nil {
		return nil, err
	}

	var current []properties.Property
	p, err := s.update(ctx, s.byID(id), func(p *panel_models.Project) (bool, error) {
		props, err := p.Properties.Decode(ns)
		if err != nil {
			return false, err
		}
		i := properties.Index(props, name)
		if i < 0 {
			return false, fmt.Errorf("%s property %q: %w", ns, name, interfaces.ErrNotFound)
		}
		current = append(props[:i], props[i+1:]...)
		p.Properties.Replace(ns, current)
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	if ns == properties.Control {
		s.notify(ctx, p.Name, current)
	}
	return p, nil
}

// Create adds a project with empty namespaces.
func (s *Service) Create(ctx context.Context, req api_models.CreateProjectRequest) (*panel_models.Project, error) {
	name, err := validName(req.Name, 100)
	if err != nil {
		return nil, err
	}
	return s.repo.Create(ctx, panel_models.NewProject(name, strings.TrimSpace(req.Description)))
}

func (s *Service) List(ctx context.Context) ([]*panel_models.Project, error) {
	return s.repo.List(ctx)
}

func (s *Service) Get(ctx context.Context, id int64) (*panel_models.Project, error) {
	return s.repo.GetByID(ctx, id)
}

// Update changes name and description.
func (s *Service) Update(ctx context.Context, id int64, req api_models.UpdateProjectRequest) (*panel_models.Project, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Name != nil {
		if p.Name, err = validName(*req.Name, 100); err != nil {
			return nil, err
		}
	}
	if req.Description != nil {
		p.Description = strings.TrimSpace(*req.Description)
	}
	if err := s.repo.UpdateDetails(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.repo.Delete(ctx, id)
}

// Reports returns the newest input reports of a project.
func (s *Service) Reports(ctx context.Context, id int64, limit int) ([]panel_models.InputReport, int64, error) {
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return nil, 0, err
	}
	if limit < 1 || limit > 500 {
		limit = 50
	}
	reports, err := s.reports.Latest(ctx, id, limit)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.reports.Count(ctx, id)
	if err != nil {
		return nil, 0, err
	}
	return reports, total, nil
}
