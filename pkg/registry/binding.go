package registry

import (
	"errors"
	"fmt"

	"github.com/meshprov/meshprov-go/pkg/composition"
	"github.com/meshprov/meshprov-go/pkg/log"
	"github.com/meshprov/meshprov-go/pkg/mesh"
)

// BindModel binds an application key to a local model, identified by its
// element address and model ID. Pass composition.CompanyNone for SIG models.
//
// Binding an already-bound key is a no-op success. A model with no free
// slot fails with ErrBindingsFull.
func (s *Store) BindModel(elemAddr mesh.Address, company, modelID uint16, appIdx mesh.KeyIndex) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	model, err := s.findModelLocked(elemAddr, company, modelID)
	if err != nil {
		return err
	}

	if s.appKeyLocked(appIdx) == nil {
		return fmt.Errorf("%w: application key index %s", ErrNotFound, appIdx)
	}

	if model.IsBound(appIdx) {
		return nil
	}

	for i := range model.Keys {
		if model.Keys[i] != mesh.KeyUnused {
			continue
		}
		model.Keys[i] = appIdx

		s.sink.OnModelBindingChanged(elemAddr, *model)
		s.emit(log.CategoryBinding, log.OpBind, func(ev *log.Event) {
			a := uint16(appIdx)
			ev.AppIdx = &a
			ev.Detail = fmt.Sprintf("model 0x%04x", modelID)
		})
		return nil
	}

	return fmt.Errorf("%w: model 0x%04x", ErrBindingsFull, modelID)
}

// UnbindModel removes an application key from a local model's binding slots
// and clears the model's publication state.
func (s *Store) UnbindModel(elemAddr mesh.Address, company, modelID uint16, appIdx mesh.KeyIndex) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	model, err := s.findModelLocked(elemAddr, company, modelID)
	if err != nil {
		return err
	}

	s.unbindModelLocked(elemAddr, model, appIdx)
	return nil
}

// unbindModelLocked clears every slot holding appIdx. A key occupies at most
// one slot, but the operation is defined over all matches. Publication state
// is cleared unconditionally as part of unbinding, regardless of which key
// the publication referenced.
func (s *Store) unbindModelLocked(elemAddr mesh.Address, model *composition.Model, appIdx mesh.KeyIndex) {
	for i := range model.Keys {
		if model.Keys[i] != appIdx {
			continue
		}

		model.Keys[i] = mesh.KeyUnused
		s.sink.OnModelBindingChanged(elemAddr, *model)

		s.clearPublicationLocked(elemAddr, model)

		s.emit(log.CategoryBinding, log.OpUnbind, func(ev *log.Event) {
			a := uint16(appIdx)
			ev.AppIdx = &a
			ev.Detail = fmt.Sprintf("model 0x%04x", model.ID)
		})
	}
}

func (s *Store) clearPublicationLocked(elemAddr mesh.Address, model *composition.Model) {
	if model.Pub == nil || !model.Pub.IsSet() {
		return
	}

	model.Pub.Clear()
	s.sink.OnModelBindingChanged(elemAddr, *model)
}

// unbindAllModels applies the unbind to every model of every element.
// Driven by application key deletion, and transitively by the net-key
// cascade.
func (s *Store) unbindAllModelsLocked(appIdx mesh.KeyIndex) {
	if s.comp == nil {
		return
	}
	s.comp.ForEachModel(func(elem *composition.Element, m *composition.Model) {
		s.unbindModelLocked(elem.Addr, m, appIdx)
	})
}

func (s *Store) findModelLocked(elemAddr mesh.Address, company, modelID uint16) (*composition.Model, error) {
	if s.comp == nil {
		return nil, fmt.Errorf("%w: no composition", ErrInvalidArgument)
	}

	elem, err := s.comp.ElementByAddr(elemAddr)
	if err != nil {
		if errors.Is(err, composition.ErrElementNotFound) {
			return nil, fmt.Errorf("%w: element %s", ErrNotFound, elemAddr)
		}
		return nil, err
	}

	model, err := elem.FindModel(company, modelID)
	if err != nil {
		if errors.Is(err, composition.ErrModelNotFound) {
			return nil, fmt.Errorf("%w: model 0x%04x on element %s", ErrNotFound, modelID, elemAddr)
		}
		return nil, err
	}
	return model, nil
}
