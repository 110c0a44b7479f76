package bridge

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/justyntemme/solstice/internal/app"
	"github.com/justyntemme/solstice/internal/config"
	"github.com/justyntemme/solstice/internal/events"
	"github.com/justyntemme/solstice/internal/store"
	"github.com/justyntemme/solstice/internal/trash"
)

type fakeTrash struct{ dir string }

func (f fakeTrash) MoveToTrash(path string) (trash.Item, error) {
	slot, err := os.MkdirTemp(f.dir, "item")
	if err != nil {
		return trash.Item{}, err
	}
	dst := filepath.Join(slot, filepath.Base(path))
	if err := os.Rename(path, dst); err != nil {
		return trash.Item{}, err
	}
	return trash.Item{Name: filepath.Base(path), OriginalPath: path, TrashPath: dst}, nil
}

type reply struct {
	ID     json.RawMessage `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  string          `json:"error"`
	Event  *events.Event   `json:"event"`
}

func newTestService(t *testing.T) *app.Service {
	t.Helper()
	b := events.NewBroadcaster()
	db, err := store.Open(filepath.Join(t.TempDir(), "solstice.db"), b)
	require.NoError(t, err)

	cfg := *config.DefaultConfig()
	cfg.Thumbnails.CacheDir = ""
	svc := app.New(cfg, app.Deps{Store: db, Trash: fakeTrash{dir: t.TempDir()}, Events: b})
	t.Cleanup(func() { svc.Close() })
	return svc
}

// serve runs the server over input and returns every reply line.
func serve(t *testing.T, svc *app.Service, input string) []reply {
	t.Helper()
	var out bytes.Buffer
	srv := NewServer(svc, &out)
	require.NoError(t, srv.Serve(context.Background(), strings.NewReader(input)))

	var replies []reply
	sc := bufio.NewScanner(&out)
	for sc.Scan() {
		var r reply
		require.NoError(t, json.Unmarshal(sc.Bytes(), &r))
		replies = append(replies, r)
	}
	return replies
}

// call sends one request and returns its reply.
func call(t *testing.T, svc *app.Service, method string, params any) reply {
	t.Helper()
	p, err := json.Marshal(params)
	require.NoError(t, err)
	line, err := json.Marshal(map[string]any{"id": 1, "method": method, "params": json.RawMessage(p)})
	require.NoError(t, err)

	for _, r := range serve(t, svc, string(line)+"\n") {
		if string(r.ID) == "1" {
			return r
		}
	}
	t.Fatalf("no reply to %s", method)
	return reply{}
}

func TestUnknownAndMalformed(t *testing.T) {
	svc := newTestService(t)
	replies := serve(t, svc, "not json\n"+`{"id":"a","method":"teleport"}`+"\n\n")

	var errs []string
	for _, r := range replies {
		if r.Event == nil {
			errs = append(errs, r.Error)
		}
	}
	require.Len(t, errs, 2)
	assert.Contains(t, strings.Join(errs, "|"), "malformed request")
	assert.Contains(t, strings.Join(errs, "|"), `unknown method "teleport"`)
}

func TestReadDirectory(t *testing.T) {
	svc := newTestService(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("x"), 0o644))

	r := call(t, svc, "readDirectory", dir)
	require.Empty(t, r.Error)
	var entries []map[string]any
	require.NoError(t, json.Unmarshal(r.Result, &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "a.txt", entries[0]["name"])
	assert.Equal(t, ".txt", entries[0]["extension"])

	r = call(t, svc, "readDirectory", map[string]string{"path": filepath.Join(dir, "missing")})
	require.Empty(t, r.Error)
	assert.JSONEq(t, `[]`, string(r.Result))
}

func TestCreateRenameUndo(t *testing.T) {
	svc := newTestService(t)
	dir := t.TempDir()

	r := call(t, svc, "createFile", map[string]string{"parentPath": dir, "fileName": "a.txt"})
	require.Empty(t, r.Error)
	var res Result
	require.NoError(t, json.Unmarshal(r.Result, &res))
	assert.True(t, res.Success)
	assert.Equal(t, filepath.Join(dir, "a.txt"), res.Path)

	r = call(t, svc, "renameItem", map[string]string{"oldPath": res.Path, "newName": "b.txt"})
	require.Empty(t, r.Error)
	require.NoError(t, json.Unmarshal(r.Result, &res))
	assert.Equal(t, filepath.Join(dir, "b.txt"), res.NewPath)

	r = call(t, svc, "undo", nil)
	require.Empty(t, r.Error)
	var u struct {
		Success bool            `json:"success"`
		Action  json.RawMessage `json:"action"`
		History app.History     `json:"history"`
	}
	require.NoError(t, json.Unmarshal(r.Result, &u))
	assert.Contains(t, string(u.Action), `"type":"rename"`)
	assert.True(t, u.History.CanRedo)
	assert.FileExists(t, filepath.Join(dir, "a.txt"))

	r = call(t, svc, "renameItem", map[string]string{"oldPath": filepath.Join(dir, "nope"), "newName": "c"})
	assert.NotEmpty(t, r.Error)
}

func TestMovePartialFailureListsDoneItems(t *testing.T) {
	svc := newTestService(t)
	src, dst := t.TempDir(), t.TempDir()
	a := filepath.Join(src, "a.txt")
	require.NoError(t, os.WriteFile(a, []byte("a"), 0o644))
	missing := filepath.Join(src, "missing.txt")

	r := call(t, svc, "moveItems", map[string]any{"sources": []string{a, missing}, "destination": dst})
	require.Empty(t, r.Error)
	var res Result
	require.NoError(t, json.Unmarshal(r.Result, &res))
	assert.False(t, res.Success)
	require.Len(t, res.Items, 1)
	assert.Equal(t, filepath.Join(dst, "a.txt"), res.Items[0].Target)
	assert.Len(t, res.Errors, 1)
	assert.True(t, svc.History().CanUndo)

	r = call(t, svc, "copyItems", map[string]any{"sources": []string{missing}, "destination": dst})
	assert.NotEmpty(t, r.Error)
}

func TestPushUndoable(t *testing.T) {
	svc := newTestService(t)
	r := call(t, svc, "pushUndoable", map[string]any{"type": "create", "itemType": "file", "path": "/tmp/x", "parentPath": "/tmp", "name": "x"})
	require.Empty(t, r.Error)
	assert.True(t, svc.History().CanUndo)

	r = call(t, svc, "pushUndoable", map[string]any{"type": "delete"})
	assert.Contains(t, r.Error, "invalid params")
}

func TestTags(t *testing.T) {
	svc := newTestService(t)
	r := call(t, svc, "addFileTag", map[string]string{"filePath": "/d/a.txt", "tag": "work"})
	require.Empty(t, r.Error)
	var res Result
	require.NoError(t, json.Unmarshal(r.Result, &res))
	assert.Equal(t, map[string][]string{"/d/a.txt": {"work"}}, res.Tags)

	r = call(t, svc, "updateFileTags", map[string]any{"filePath": "/d/a.txt", "tags": []string{}})
	require.Empty(t, r.Error)

	r = call(t, svc, "getAllTags", nil)
	require.Empty(t, r.Error)
	assert.JSONEq(t, `{}`, string(r.Result))
}

func TestPreviewAndApplyRename(t *testing.T) {
	svc := newTestService(t)
	dir := t.TempDir()
	var paths []string
	for _, n := range []string{"a.txt", "b.txt"} {
		p := filepath.Join(dir, n)
		require.NoError(t, os.WriteFile(p, nil, 0o644))
		paths = append(paths, p)
	}
	strategy := json.RawMessage(`{"type":"numbering","start":1,"step":1,"padding":2,"position":"suffix","separator":"_"}`)

	r := call(t, svc, "previewRename", map[string]any{"paths": paths, "strategy": strategy})
	require.Empty(t, r.Error)
	assert.Contains(t, string(r.Result), `"newName":"a_01.txt"`)
	assert.NoFileExists(t, filepath.Join(dir, "a_01.txt"))

	r = call(t, svc, "applyRename", map[string]any{"paths": paths, "strategy": strategy})
	require.Empty(t, r.Error)
	assert.FileExists(t, filepath.Join(dir, "b_02.txt"))

	r = call(t, svc, "applyRename", map[string]any{"paths": paths, "strategy": json.RawMessage(`{"type":"bogus"}`)})
	assert.Contains(t, r.Error, "invalid params")
}

func TestSearchFiles(t *testing.T) {
	svc := newTestService(t)
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "needle.md"), nil, 0o644))

	r := call(t, svc, "searchFiles", map[string]string{"searchPath": root, "query": "needle", "fileType": "all"})
	require.Empty(t, r.Error)
	var res app.SearchResult
	require.NoError(t, json.Unmarshal(r.Result, &res))
	require.Len(t, res.Results, 1)
	assert.Equal(t, "needle.md", res.Results[0].Name)
}

func TestReadFileContentTooLarge(t *testing.T) {
	svc := newTestService(t)
	big := filepath.Join(t.TempDir(), "big.log")
	require.NoError(t, os.WriteFile(big, make([]byte, app.MaxPreviewBytes+1), 0o644))

	r := call(t, svc, "readFileContent", big)
	assert.Contains(t, r.Error, "too large")
}

func TestRequestIDEchoed(t *testing.T) {
	svc := newTestService(t)
	dir := t.TempDir()
	line := `{"id":7,"method":"createFolder","params":{"parentPath":` + strconvQuote(dir) + `,"folderName":"x"}}` + "\n"

	var sawReply bool
	for _, r := range serve(t, svc, line) {
		if string(r.ID) == "7" {
			sawReply = true
		}
	}
	assert.True(t, sawReply)
	assert.Contains(t, NewServer(svc, &bytes.Buffer{}).Methods(), "readDirectory")
}

func strconvQuote(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}
