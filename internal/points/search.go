package points

import "github.com/sells-group/poi-cli/internal/feature"

// SetFilter replaces both search criteria.
func (s *Store) SetFilter(term, category string) {
	s.mu.Lock()
	s.search = feature.SearchState{Term: term, Category: category}
	s.mu.Unlock()
	s.notify()
}

// SetSearchTerm replaces the name criterion only.
func (s *Store) SetSearchTerm(term string) {
	s.mu.Lock()
	s.search.Term = term
	s.mu.Unlock()
	s.notify()
}

// SetSearchCategory replaces the category criterion only.
func (s *Store) SetSearchCategory(category string) {
	s.mu.Lock()
	s.search.Category = category
	s.mu.Unlock()
	s.notify()
}

// ClearFilter resets both criteria.
func (s *Store) ClearFilter() {
	s.SetFilter("", "")
}

// Search returns the current criteria.
func (s *Store) Search() feature.SearchState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.search
}

// HasActiveFilters reports whether any criterion is set.
func (s *Store) HasActiveFilters() bool {
	return s.Search().Active()
}

// Filtered returns the features matching the current criteria.
func (s *Store) Filtered() []feature.Feature {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneAll(feature.Filter(s.features, s.search))
}

// View returns the filtered features with total and filtered counts.
func (s *Store) View() feature.FilteredView {
	s.mu.RLock()
	defer s.mu.RUnlock()
	filtered := cloneAll(feature.Filter(s.features, s.search))
	return feature.FilteredView{
		Features: filtered,
		Total:    len(s.features),
		Filtered: len(filtered),
	}
}

// Categories returns the sorted distinct non-empty categories in the store.
func (s *Store) Categories() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return feature.Categories(s.features)
}
