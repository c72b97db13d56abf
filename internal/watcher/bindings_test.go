package watcher

import (
	"context"
	stderrors "errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/forge/internal/glob"
)

type recorder struct {
	mu   sync.Mutex
	runs []string
	fail map[string]error
}

func (r *recorder) run(ctx context.Context, task string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs = append(r.runs, task)
	return r.fail[task]
}

func TestStyleChangeRerunsOnlySass(t *testing.T) {
	rec := &recorder{}
	b := NewBindings(nil,
		TaskBinding("styles", glob.MustNew("./public/scss/**/*.scss"), rec.run, "sass"),
		TaskBinding("templates", glob.MustNew("./public/**/*.html"), rec.run, "templatecache"),
	)

	err := b.Handle(context.Background(), []ChangeEvent{
		{Path: "public/scss/components/_buttons.scss", Type: EventTypeModified},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"sass"}, rec.runs)
}

func TestBindingsSeeOnlyTheirMatches(t *testing.T) {
	var got []string
	b := NewBindings(nil, Binding{
		Name:  "reload",
		Globs: glob.MustNew("./views/**/*.*", "./routes/**/*.js", "!./public/scss/main.scss"),
		Handler: func(ctx context.Context, events []ChangeEvent) error {
			for _, ev := range events {
				got = append(got, ev.Path)
			}
			return nil
		},
	})

	require.NoError(t, b.Handle(context.Background(), []ChangeEvent{
		{Path: "public/scss/main.scss"},
		{Path: "routes/index.js"},
		{Path: "views/layout.ejs"},
	}))
	assert.Equal(t, []string{"routes/index.js", "views/layout.ejs"}, got)
}

func TestBindingFailureDoesNotStopOthers(t *testing.T) {
	rec := &recorder{fail: map[string]error{"sass": stderrors.New("compile error")}}
	b := NewBindings(nil,
		TaskBinding("styles", glob.MustNew("public/**/*.scss"), rec.run, "sass"),
		TaskBinding("templates", glob.MustNew("public/**/*.html"), rec.run, "templatecache"),
	)

	err := b.Handle(context.Background(), []ChangeEvent{
		{Path: "public/app/home.html"},
		{Path: "public/scss/main.scss"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "compile error")
	assert.ElementsMatch(t, []string{"sass", "templatecache"}, rec.runs)
}

func TestTaskBindingRunsTasksInOrderAndStopsOnFailure(t *testing.T) {
	rec := &recorder{fail: map[string]error{"b": stderrors.New("boom")}}
	binding := TaskBinding("x", glob.MustNew("**"), rec.run, "a", "b", "c")

	err := binding.Handler(context.Background(), []ChangeEvent{{Path: "f"}})
	assert.Error(t, err)
	assert.Equal(t, []string{"a", "b"}, rec.runs)
}

func TestBindingsBases(t *testing.T) {
	b := NewBindings(nil,
		TaskBinding("styles", glob.MustNew("./public/scss/**/*.scss"), nil),
		TaskBinding("templates", glob.MustNew("./public/**/*.html"), nil),
		TaskBinding("more-styles", glob.MustNew("public/scss/main.scss"), nil),
	)
	assert.Equal(t, []string{"public/scss", "public"}, b.Bases())
}
