package boot

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	klog "github.com/go-kratos/kratos/v2/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-lynx/logsink/conf"
	"github.com/go-lynx/logsink/errs"
	"github.com/go-lynx/logsink/record"
	"github.com/go-lynx/logsink/store/memory"
)

func batch() []*record.Record {
	ts := time.Date(2019, 12, 10, 0, 0, 0, 0, time.UTC)
	return []*record.Record{
		{ID: "1", Source: "api", Category: record.Info, Timestamp: ts},
		{ID: "2", Source: "api", Category: record.Error, Timestamp: ts},
		{ID: "3", Source: "worker", Category: record.Critical, Timestamp: ts},
		{ID: "4", Source: "api", Category: record.Info, Timestamp: ts},
	}
}

func buildMemory(t *testing.T, route conf.Route) (Destination, *memory.Database, *memory.Store) {
	t.Helper()
	c := &conf.Logsink{Name: "test", Route: route}
	c.ApplyDefaults()

	db := memory.NewDatabase("test")
	store := memory.NewStore()
	d, err := Build(context.Background(), c, WithMemory(db, store), WithLogger(klog.DefaultLogger))
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close(context.Background()) })
	return d, db, store
}

func TestBuild_Collection(t *testing.T) {
	d, db, store := buildMemory(t, conf.Route{Collection: "all"})
	assert.Equal(t, "test", d.Name())
	assert.Equal(t, conf.BackendMemory, d.Backend())
	assert.NotNil(t, d.Metrics())

	require.NoError(t, d.Write(batch()))
	assert.Equal(t, []string{"all"}, db.CollectionNames())
	assert.Equal(t, 4, db.Collection("all").Len())
	require.Len(t, store.Calls(), 1)
	assert.Equal(t, memory.CallInsertMany, store.Calls()[0].Kind)
}

func TestBuild_Categories(t *testing.T) {
	d, db, store := buildMemory(t, conf.Route{Categories: map[string]string{
		"Info": "info", "Success": "info", "Event": "info",
		"Warning": "problems", "Error": "problems", "Failure": "problems",
		"Critical": "critical",
	}})

	require.NoError(t, d.WriteContext(context.Background(), batch()))
	assert.Equal(t, 2, db.Collection("info").Len())
	assert.Equal(t, 1, db.Collection("problems").Len())
	assert.Equal(t, 1, db.Collection("critical").Len())
	assert.Len(t, store.Calls(), 3)
}

func TestBuild_Template(t *testing.T) {
	d, db, _ := buildMemory(t, conf.Route{Template: "$Source_$LogDate", DateFormat: "yyyyMMdd"})

	require.NoError(t, <-d.WriteAsync(context.Background(), batch()))
	assert.Equal(t, []string{"api_20191210", "worker_20191210"}, db.CollectionNames())
	assert.Equal(t, 3, db.Collection("api_20191210").Len())
}

func TestBuild_Errors(t *testing.T) {
	_, err := Build(context.Background(), nil)
	assert.ErrorIs(t, err, errs.ErrInvalidArgument)

	c := conf.Default()
	c.Route = conf.Route{}
	_, err = Build(context.Background(), c)
	assert.ErrorIs(t, err, errs.ErrInvalidArgument)

	c = conf.Default()
	c.Route = conf.Route{Template: "$LogType(12"}
	_, err = Build(context.Background(), c)
	assert.ErrorIs(t, err, errs.ErrTemplateSyntax)

	c = conf.Default()
	c.Route = conf.Route{Categories: map[string]string{"info": "only-info"}}
	d, err := Build(context.Background(), c)
	assert.ErrorIs(t, err, errs.ErrInvalidArgument, "the mapping must be total")
	assert.Nil(t, d)
}

func TestBuild_Redis(t *testing.T) {
	c := &conf.Logsink{
		Backend: conf.BackendRedis,
		Route:   conf.Route{Template: "$LogType"},
		Redis:   &conf.Redis{Addrs: []string{"127.0.0.1:1"}, KeyPrefix: "logs:"},
	}
	c.ApplyDefaults()

	d, err := Build(context.Background(), c)
	require.NoError(t, err, "the redis client connects lazily")
	assert.Equal(t, conf.BackendRedis, d.Backend())
	assert.NoError(t, d.Close(context.Background()))
}

func TestNewRouter(t *testing.T) {
	_, err := NewRouter[*memory.Collection](conf.Route{Collection: "x"}, memory.NewDatabase("db"))
	require.NoError(t, err)

	_, err = NewRouter[*memory.Collection](conf.Route{}, memory.NewDatabase("db"))
	assert.ErrorIs(t, err, errs.ErrInvalidArgument)
}

func TestConfigPath(t *testing.T) {
	t.Setenv(ConfigEnv, "/etc/logsink.yaml")
	assert.Equal(t, "flag.yaml", ConfigPath("flag.yaml"))
	assert.Equal(t, "/etc/logsink.yaml", ConfigPath(""))

	t.Setenv(ConfigEnv, "")
	assert.Equal(t, "", ConfigPath(""))
}

func TestLoadConfig(t *testing.T) {
	c, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, conf.BackendMemory, c.Backend)

	path := filepath.Join(t.TempDir(), "logsink.yaml")
	require.NoError(t, os.WriteFile(path, []byte("logsink:\n  name: file\n  route:\n    collection: logs\n"), 0o600))
	c, err = LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "file", c.Name)

	require.NoError(t, InitLogger(c))
}
