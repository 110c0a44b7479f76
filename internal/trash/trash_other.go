//go:build !linux && !darwin && !windows

package trash

func isAvailable() bool { return false }

func moveToTrash(string) (Item, error) { return Item{}, ErrUnavailable }

func list() ([]Item, error) { return nil, ErrUnavailable }

func empty() error { return ErrUnavailable }

func deleteItem(Item) error { return ErrUnavailable }

func displayName() string { return "Trash" }
