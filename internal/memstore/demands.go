package memstore

import (
	"context"
	"time"

	"github.com/ariefcatur/go-agro-market/internal/apperr"
	"github.com/ariefcatur/go-agro-market/internal/demands"
)

func cloneDemand(d demands.Demand) demands.Demand {
	d.QualityRequirements = cloneStrings(d.QualityRequirements)
	d.Tags = cloneStrings(d.Tags)
	rs := make([]demands.Response, len(d.Responses))
	for i, r := range d.Responses {
		r.ProductSamples = cloneStrings(r.ProductSamples)
		if r.IsAccepted != nil {
			v := *r.IsAccepted
			r.IsAccepted = &v
		}
		rs[i] = r
	}
	d.Responses = rs
	return d
}

func (s *Store) demandIndex(id string) int {
	for i := range s.demands {
		if s.demands[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) CreateDemand(_ context.Context, d demands.Demand) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("CreateDemand"); err != nil {
		return err
	}
	s.demands = append(s.demands, cloneDemand(d))
	return nil
}

func (s *Store) GetDemand(_ context.Context, id string) (demands.Demand, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.demandIndex(id)
	if i < 0 {
		return demands.Demand{}, apperr.ErrNotFound
	}
	return cloneDemand(s.demands[i]), nil
}

func (s *Store) ListDemands(_ context.Context) ([]demands.Demand, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]demands.Demand, 0, len(s.demands))
	for _, d := range s.demands {
		out = append(out, cloneDemand(d))
	}
	return out, nil
}

func (s *Store) UpdateDemandStatus(_ context.Context, id string, from, to demands.Status, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("UpdateDemandStatus"); err != nil {
		return err
	}
	i := s.demandIndex(id)
	if i < 0 {
		return apperr.ErrNotFound
	}
	if s.demands[i].Status != from {
		return demands.ErrStaleStatus
	}
	s.demands[i].Status = to
	s.demands[i].UpdatedAt = at
	return nil
}

func (s *Store) AddResponse(_ context.Context, r demands.Response) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("AddResponse"); err != nil {
		return err
	}
	i := s.demandIndex(r.RequestID)
	if i < 0 {
		return apperr.ErrNotFound
	}
	d := &s.demands[i]
	if d.Status != demands.StatusOpen {
		return demands.ErrNotOpen
	}
	if _, dup := d.ResponseBy(r.FarmerID); dup {
		return demands.ErrAlreadyResponded
	}
	d.Responses = append(d.Responses, r)
	d.UpdatedAt = r.CreatedAt
	return nil
}

func (s *Store) AcceptResponse(_ context.Context, demandID, responseID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("AcceptResponse"); err != nil {
		return err
	}
	i := s.demandIndex(demandID)
	if i < 0 {
		return apperr.ErrNotFound
	}
	d := &s.demands[i]
	if d.Status != demands.StatusOpen {
		return demands.ErrStaleStatus
	}
	found := false
	for _, r := range d.Responses {
		if r.ID == responseID {
			found = true
		}
	}
	if !found {
		return demands.ErrResponseNotFound
	}
	for j := range d.Responses {
		accepted := d.Responses[j].ID == responseID
		d.Responses[j].IsAccepted = &accepted
	}
	d.Status = demands.StatusInProgress
	d.UpdatedAt = at
	return nil
}

func (s *Store) ExpireDemands(_ context.Context, now time.Time) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("ExpireDemands"); err != nil {
		return nil, err
	}
	ids := make([]string, 0)
	for i := range s.demands {
		d := &s.demands[i]
		if d.Status.Expirable() && d.RequiredBy.Before(now) {
			d.Status = demands.StatusExpired
			d.UpdatedAt = now
			ids = append(ids, d.ID)
		}
	}
	return ids, nil
}
