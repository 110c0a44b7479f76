package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/justyntemme/solstice/internal/app"
	"github.com/justyntemme/solstice/internal/fs"
	"github.com/justyntemme/solstice/internal/ops"
	"github.com/justyntemme/solstice/internal/rename"
	"github.com/justyntemme/solstice/internal/search"
	"github.com/justyntemme/solstice/internal/trash"
	"github.com/justyntemme/solstice/internal/undo"
)

var errBadParams = errors.New("invalid params")

// Result is the reply shape of mutating calls.
type Result struct {
	Success bool                `json:"success"`
	Path    string              `json:"path,omitempty"`
	NewPath string              `json:"newPath,omitempty"`
	Content string              `json:"content,omitempty"`
	Data    string              `json:"data,omitempty"`
	Count   int                 `json:"count,omitempty"`
	Errors  []string            `json:"errors,omitempty"`
	Items   []ops.Transfer      `json:"items,omitempty"`
	Trashed []trash.Item        `json:"trashed,omitempty"`
	Tags    map[string][]string `json:"tags,omitempty"`
}

type searchParams struct {
	SearchPath string      `json:"searchPath"`
	Query      string      `json:"query"`
	FileType   search.Kind `json:"fileType"`
}

type transferParams struct {
	Sources     []string `json:"sources"`
	Destination string   `json:"destination"`
}

type renameParams struct {
	OldPath string `json:"oldPath"`
	NewName string `json:"newName"`
}

type createParams struct {
	ParentPath string `json:"parentPath"`
	FolderName string `json:"folderName"`
	FileName   string `json:"fileName"`
}

type batchParams struct {
	Operations []ops.RenameOperation `json:"operations"`
}

type strategyParams struct {
	Paths    []string        `json:"paths"`
	Strategy json.RawMessage `json:"strategy"`
}

type tagParams struct {
	FilePath string   `json:"filePath"`
	Tag      string   `json:"tag"`
	Tags     []string `json:"tags"`
}

type settingParams struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type undoReply struct {
	Success bool            `json:"success"`
	Action  json.RawMessage `json:"action,omitempty"`
	History app.History     `json:"history"`
}

func decode(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return fmt.Errorf("%w: missing params", errBadParams)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: %v", errBadParams, err)
	}
	return nil
}

// pathParam accepts a bare JSON string or {"path": "..."}.
func pathParam(raw json.RawMessage) (string, error) {
	var p string
	if err := json.Unmarshal(raw, &p); err == nil {
		return p, nil
	}
	var obj struct {
		Path string `json:"path"`
	}
	if err := decode(raw, &obj); err != nil {
		return "", err
	}
	return obj.Path, nil
}

// pathsParam accepts a bare JSON array or {"paths": [...]}.
func pathsParam(raw json.RawMessage) ([]string, error) {
	var p []string
	if err := json.Unmarshal(raw, &p); err == nil {
		return p, nil
	}
	var obj struct {
		Paths []string `json:"paths"`
	}
	if err := decode(raw, &obj); err != nil {
		return nil, err
	}
	return obj.Paths, nil
}

func errorStrings(errs []error) []string {
	out := make([]string, len(errs))
	for i, err := range errs {
		out[i] = err.Error()
	}
	return out
}

// transferResult reports a copy or move. When some items went through before
// a failure, the reply lists them with Success false; they are already on
// the undo stack.
func transferResult(done []ops.Transfer, err error) (any, error) {
	if err != nil && len(done) == 0 {
		return nil, err
	}
	res := Result{Success: err == nil, Count: len(done), Items: done}
	if err != nil {
		res.Errors = []string{err.Error()}
	}
	return res, nil
}

func (s *Server) withPath(fn func(ctx context.Context, path string) (any, error)) handler {
	return func(ctx context.Context, raw json.RawMessage) (any, error) {
		path, err := pathParam(raw)
		if err != nil {
			return nil, err
		}
		return fn(ctx, path)
	}
}

func (s *Server) routes() map[string]handler {
	svc := s.svc
	return map[string]handler{
		"readDirectory": s.withPath(func(_ context.Context, path string) (any, error) {
			return svc.ListDirectory(path)
		}),
		"navigate": s.withPath(func(ctx context.Context, path string) (any, error) {
			return svc.Navigate(ctx, path)
		}),
		"searchFiles": func(ctx context.Context, raw json.RawMessage) (any, error) {
			var p searchParams
			if err := decode(raw, &p); err != nil {
				return nil, err
			}
			return svc.Search(ctx, p.SearchPath, p.Query, search.ParseKind(string(p.FileType)))
		},
		"advancedSearch": func(ctx context.Context, raw json.RawMessage) (any, error) {
			var opts search.Options
			if err := decode(raw, &opts); err != nil {
				return nil, err
			}
			return svc.AdvancedSearch(ctx, opts)
		},
		"cancelSearch": func(context.Context, json.RawMessage) (any, error) {
			return Result{Success: svc.CancelSearch()}, nil
		},
		"getFolderSize": s.withPath(func(ctx context.Context, path string) (any, error) {
			return svc.FolderSize(ctx, path)
		}),
		"getFolderStats": s.withPath(func(ctx context.Context, path string) (any, error) {
			st, err := svc.FolderStats(ctx, path)
			if err != nil {
				return nil, err
			}
			return struct {
				Success bool `json:"success"`
				fs.FolderStats
			}{true, st}, nil
		}),
		"copyItems": func(_ context.Context, raw json.RawMessage) (any, error) {
			var p transferParams
			if err := decode(raw, &p); err != nil {
				return nil, err
			}
			done, err := svc.CopyItems(p.Sources, p.Destination)
			return transferResult(done, err)
		},
		"moveItems": func(_ context.Context, raw json.RawMessage) (any, error) {
			var p transferParams
			if err := decode(raw, &p); err != nil {
				return nil, err
			}
			done, err := svc.MoveItems(p.Sources, p.Destination)
			return transferResult(done, err)
		},
		"renameItem": func(_ context.Context, raw json.RawMessage) (any, error) {
			var p renameParams
			if err := decode(raw, &p); err != nil {
				return nil, err
			}
			newPath, err := svc.RenameItem(p.OldPath, p.NewName)
			if err != nil {
				return nil, err
			}
			return Result{Success: true, NewPath: newPath}, nil
		},
		"createFolder": func(_ context.Context, raw json.RawMessage) (any, error) {
			var p createParams
			if err := decode(raw, &p); err != nil {
				return nil, err
			}
			path, err := svc.CreateFolder(p.ParentPath, p.FolderName)
			if err != nil {
				return nil, err
			}
			return Result{Success: true, Path: path}, nil
		},
		"createFile": func(_ context.Context, raw json.RawMessage) (any, error) {
			var p createParams
			if err := decode(raw, &p); err != nil {
				return nil, err
			}
			path, err := svc.CreateFile(p.ParentPath, p.FileName)
			if err != nil {
				return nil, err
			}
			return Result{Success: true, Path: path}, nil
		},
		"deleteItems": func(_ context.Context, raw json.RawMessage) (any, error) {
			paths, err := pathsParam(raw)
			if err != nil {
				return nil, err
			}
			items, err := svc.DeleteItems(paths)
			if err != nil && len(items) == 0 {
				return nil, err
			}
			res := Result{Success: err == nil, Count: len(items), Trashed: items}
			if err != nil {
				res.Errors = []string{err.Error()}
			}
			return res, nil
		},
		"batchRename": func(_ context.Context, raw json.RawMessage) (any, error) {
			var p batchParams
			if err := decode(raw, &p); err != nil {
				return nil, err
			}
			res, err := svc.BatchRename(p.Operations)
			if err != nil {
				return nil, err
			}
			return Result{Success: res.Count > 0, Count: res.Count, Errors: errorStrings(res.Errors), Items: res.Renamed}, nil
		},
		"previewRename": func(_ context.Context, raw json.RawMessage) (any, error) {
			paths, strategy, err := strategyArgs(raw)
			if err != nil {
				return nil, err
			}
			return svc.PreviewRename(paths, strategy)
		},
		"applyRename": func(ctx context.Context, raw json.RawMessage) (any, error) {
			paths, strategy, err := strategyArgs(raw)
			if err != nil {
				return nil, err
			}
			_, res, err := svc.ApplyRename(ctx, paths, strategy)
			if err != nil {
				return nil, err
			}
			return Result{Success: true, Count: res.Count, Errors: errorStrings(res.Errors), Items: res.Renamed}, nil
		},
		"undo": func(ctx context.Context, _ json.RawMessage) (any, error) {
			a, err := svc.Undo(ctx)
			if err != nil {
				return nil, err
			}
			return s.undoResult(a)
		},
		"redo": func(ctx context.Context, _ json.RawMessage) (any, error) {
			a, err := svc.Redo(ctx)
			if err != nil {
				return nil, err
			}
			return s.undoResult(a)
		},
		"getUndoState": func(context.Context, json.RawMessage) (any, error) {
			return svc.History(), nil
		},
		"pushUndoable": func(_ context.Context, raw json.RawMessage) (any, error) {
			a, err := undo.Unmarshal(raw)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", errBadParams, err)
			}
			if err := svc.PushUndoable(a); err != nil {
				return nil, err
			}
			return Result{Success: true}, nil
		},
		"getAllTags": func(context.Context, json.RawMessage) (any, error) {
			return svc.AllTags()
		},
		"updateFileTags": func(_ context.Context, raw json.RawMessage) (any, error) {
			var p tagParams
			if err := decode(raw, &p); err != nil {
				return nil, err
			}
			if _, err := svc.UpdateFileTags(p.FilePath, p.Tags); err != nil {
				return nil, err
			}
			return s.allTagsResult()
		},
		"addFileTag": func(_ context.Context, raw json.RawMessage) (any, error) {
			var p tagParams
			if err := decode(raw, &p); err != nil {
				return nil, err
			}
			if _, err := svc.AddFileTag(p.FilePath, p.Tag); err != nil {
				return nil, err
			}
			return s.allTagsResult()
		},
		"removeFileTag": func(_ context.Context, raw json.RawMessage) (any, error) {
			var p tagParams
			if err := decode(raw, &p); err != nil {
				return nil, err
			}
			if _, err := svc.RemoveFileTag(p.FilePath, p.Tag); err != nil {
				return nil, err
			}
			return s.allTagsResult()
		},
		"getFavorites": func(context.Context, json.RawMessage) (any, error) {
			return svc.Favorites()
		},
		"addFavorite": s.withPath(func(_ context.Context, path string) (any, error) {
			return Result{Success: true}, svc.AddFavorite(path)
		}),
		"removeFavorite": s.withPath(func(_ context.Context, path string) (any, error) {
			return Result{Success: true}, svc.RemoveFavorite(path)
		}),
		"getSettings": func(context.Context, json.RawMessage) (any, error) {
			return svc.Settings()
		},
		"saveSetting": func(_ context.Context, raw json.RawMessage) (any, error) {
			var p settingParams
			if err := decode(raw, &p); err != nil {
				return nil, err
			}
			return Result{Success: true}, svc.SaveSetting(p.Key, p.Value)
		},
		"getThumbnail": s.withPath(func(_ context.Context, path string) (any, error) {
			data, err := svc.Thumbnail(path)
			if err != nil {
				return nil, err
			}
			return Result{Success: true, Data: data}, nil
		}),
		"getDrives": func(context.Context, json.RawMessage) (any, error) {
			return svc.Drives(), nil
		},
		"getSpecialFolders": func(context.Context, json.RawMessage) (any, error) {
			return svc.SpecialFolders(), nil
		},
		"getItemProperties": s.withPath(func(_ context.Context, path string) (any, error) {
			return svc.ItemProperties(path)
		}),
		"readFileContent": s.withPath(func(_ context.Context, path string) (any, error) {
			content, err := svc.ReadFileContent(path)
			if err != nil {
				return nil, err
			}
			return Result{Success: true, Content: content}, nil
		}),
		"watch": s.withPath(func(_ context.Context, path string) (any, error) {
			return Result{Success: true}, svc.Watch(path)
		}),
		"unwatch": s.withPath(func(_ context.Context, path string) (any, error) {
			return Result{Success: true}, svc.Unwatch(path)
		}),
	}
}

func (s *Server) undoResult(a undo.Action) (any, error) {
	data, err := undo.Marshal(a)
	if err != nil {
		return nil, err
	}
	return undoReply{Success: true, Action: data, History: s.svc.History()}, nil
}

func (s *Server) allTagsResult() (any, error) {
	all, err := s.svc.AllTags()
	if err != nil {
		return nil, err
	}
	return Result{Success: true, Tags: all}, nil
}

func strategyArgs(raw json.RawMessage) ([]string, rename.Strategy, error) {
	var p strategyParams
	if err := decode(raw, &p); err != nil {
		return nil, nil, err
	}
	strategy, err := rename.DecodeStrategy(p.Strategy)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", errBadParams, err)
	}
	return p.Paths, strategy, nil
}
