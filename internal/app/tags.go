package app

// Tag, favorite and setting calls pass through to the store.

func (s *Service) AllTags() (map[string][]string, error) {
	if s.store == nil {
		return nil, ErrNoStore
	}
	return s.store.AllTags()
}

func (s *Service) TagsFor(path string) ([]string, error) {
	if s.store == nil {
		return nil, ErrNoStore
	}
	return s.store.TagsFor(path)
}

func (s *Service) PathsWithTag(tag string) ([]string, error) {
	if s.store == nil {
		return nil, ErrNoStore
	}
	return s.store.PathsWithTag(tag)
}

// UpdateFileTags replaces the tags on path and returns them.
func (s *Service) UpdateFileTags(path string, tags []string) ([]string, error) {
	if s.store == nil {
		return nil, ErrNoStore
	}
	if err := s.store.SetTags(path, tags); err != nil {
		return nil, err
	}
	return s.store.TagsFor(path)
}

func (s *Service) AddFileTag(path, tag string) ([]string, error) {
	if s.store == nil {
		return nil, ErrNoStore
	}
	return s.store.AddTag(path, tag)
}

func (s *Service) RemoveFileTag(path, tag string) ([]string, error) {
	if s.store == nil {
		return nil, ErrNoStore
	}
	return s.store.RemoveTag(path, tag)
}

func (s *Service) Favorites() ([]string, error) {
	if s.store == nil {
		return nil, ErrNoStore
	}
	return s.store.Favorites()
}

func (s *Service) AddFavorite(path string) error {
	if s.store == nil {
		return ErrNoStore
	}
	return s.store.AddFavorite(path)
}

func (s *Service) RemoveFavorite(path string) error {
	if s.store == nil {
		return ErrNoStore
	}
	return s.store.RemoveFavorite(path)
}

func (s *Service) Settings() (map[string]string, error) {
	if s.store == nil {
		return nil, ErrNoStore
	}
	return s.store.Settings()
}

func (s *Service) SaveSetting(key, value string) error {
	if s.store == nil {
		return ErrNoStore
	}
	return s.store.SaveSetting(key, value)
}
