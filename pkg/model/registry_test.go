package model_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/surrealdb/surrealodm/pkg/constants"
	"github.com/surrealdb/surrealodm/pkg/events"
	"github.com/surrealdb/surrealodm/pkg/model"
	"github.com/surrealdb/surrealodm/pkg/storage/memory"
)

func TestCollectionName(t *testing.T) {
	t.Parallel()

	testcases := map[string]string{
		"User":     "users",
		"BlogPost": "blog_posts",
		"Person":   "people",
		"Category": "categories",
	}
	for typeName, want := range testcases {
		assert.Equal(t, want, model.CollectionName(typeName), typeName)
	}
}

func TestRegistry_define(t *testing.T) {
	t.Parallel()

	reg := model.NewRegistry(model.WithConnection(memory.New()))

	post, err := reg.Define("BlogPost")
	require.NoError(t, err)
	assert.Equal(t, "BlogPost", post.Name())
	assert.Equal(t, "blog_posts", post.Collection())
	assert.Equal(t, "BlogPostSchema", post.Schema())

	_, err = reg.Define("BlogPost")
	require.ErrorIs(t, err, constants.ErrModelAlreadyDefined)

	found, err := reg.Lookup("BlogPost")
	require.NoError(t, err)
	assert.Same(t, post, found)

	_, err = reg.Lookup("Comment")
	require.ErrorIs(t, err, constants.ErrModelNotDefined)

	reg.MustDefine("Author", model.WithCollection("writers"), model.WithSchema("Writer"))
	assert.Equal(t, []string{"Author", "BlogPost"}, reg.Names())

	assert.Panics(t, func() { reg.MustDefine("Author") })
}

func TestRegistry_bootSequence(t *testing.T) {
	t.Parallel()

	reg := model.NewRegistry()
	var calls []string

	record := func(name string) events.Listener {
		return func(_ context.Context, payload any) (events.Result, error) {
			typ, ok := payload.(*model.Type)
			require.True(t, ok)
			calls = append(calls, name+":"+typ.Name())
			return events.NoOpinion, nil
		}
	}
	reg.Hub().Listen(events.EventName(events.Booting, "User"), record("booting"))
	reg.Hub().Listen(events.EventName(events.Booted, "User"), record("booted"))

	_, err := reg.Define("User", model.OnBoot(func(typ *model.Type) error {
		calls = append(calls, "boot:"+typ.Name())
		return nil
	}))
	require.NoError(t, err)

	assert.Equal(t, []string{"booting:User", "boot:User", "booted:User"}, calls)
}

func TestRegistry_defineFailsOnInvalidOption(t *testing.T) {
	t.Parallel()

	reg := model.NewRegistry()

	_, err := reg.Define("User", model.WithScope(nil))
	require.ErrorIs(t, err, constants.ErrInvalidScope)

	_, err = reg.Define("User", model.WithCastNamed("age", "uuid"))
	require.ErrorIs(t, err, constants.ErrUnknownCast)

	_, err = reg.Lookup("User")
	require.ErrorIs(t, err, constants.ErrModelNotDefined)
}

func TestType_timestampCasts(t *testing.T) {
	t.Parallel()

	reg := model.NewRegistry()
	typ := reg.MustDefine("User", model.WithTimestamps())

	assert.True(t, typ.Timestamps())
	assert.True(t, typ.Casts().HasCast(constants.CreatedAt))
	assert.True(t, typ.Casts().HasCast(constants.UpdatedAt))
}

func TestRegistry_bootHooksCanLookUpTypes(t *testing.T) {
	t.Parallel()

	reg := model.NewRegistry()
	team := reg.MustDefine("Team")

	var (
		related *model.Type
		names   []string
	)
	reg.Hub().Listen(events.EventName(events.Booted, "User"), func(context.Context, any) (events.Result, error) {
		var err error
		related, err = reg.Lookup("Team")
		names = reg.Names()
		return events.NoOpinion, err
	})

	done := make(chan error, 1)
	go func() {
		_, err := reg.Define("User")
		done <- err
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Define did not return")
	}

	assert.Same(t, team, related)
	assert.Equal(t, []string{"Team"}, names)
	assert.Equal(t, []string{"Team", "User"}, reg.Names())
}

func TestRegistry_failedBootReleasesName(t *testing.T) {
	t.Parallel()

	reg := model.NewRegistry()

	_, err := reg.Define("User", model.OnBoot(func(*model.Type) error {
		return errors.New("no tenant configured")
	}))
	require.ErrorContains(t, err, "no tenant configured")

	_, err = reg.Lookup("User")
	require.ErrorIs(t, err, constants.ErrModelNotDefined)

	_, err = reg.Define("User")
	require.NoError(t, err)
}
