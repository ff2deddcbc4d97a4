package schema

import (
	"bytes"
	"context"
	"fmt"
	"sort"

	"github.com/koustreak/rowmap/internal/filestore"
	"github.com/koustreak/rowmap/internal/logger"
)

// LoadStore reads every YAML object under prefix in bucket, in key order.
func LoadStore(ctx context.Context, store filestore.Store, bucket, prefix string) (*Catalog, error) {
	objs, err := store.ListObjects(ctx, bucket, filestore.ListOptions{
		Prefix:    prefix,
		Recursive: true,
		Suffixes:  []string{".yaml", ".yml"},
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(objs, func(i, j int) bool { return objs[i].Key < objs[j].Key })

	log := logger.FromContext(ctx)
	c := NewCatalog()
	for _, info := range objs {
		if info.IsDir || !isSchemaFile(info.Key) {
			continue
		}
		if err := c.readObject(ctx, store, bucket, info.Key); err != nil {
			return nil, err
		}
		log.With().Str("bucket", bucket).Str("key", info.Key).Logger().
			Debug("schema document loaded")
	}
	return c, nil
}

func (c *Catalog) readObject(ctx context.Context, store filestore.Store, bucket, key string) error {
	obj, err := store.GetObject(ctx, bucket, key)
	if err != nil {
		return err
	}
	defer obj.Close()

	if err := c.ReadYAML(obj); err != nil {
		return fmt.Errorf("%s/%s: %w", bucket, key, err)
	}
	return nil
}

// PublishStore writes defs as one YAML object at key in bucket.
func PublishStore(ctx context.Context, store filestore.Store, bucket, key string, defs ...*Definition) (*filestore.ObjectInfo, error) {
	data, err := MarshalYAML(defs...)
	if err != nil {
		return nil, err
	}
	return store.PutObject(ctx, bucket, key, bytes.NewReader(data), int64(len(data)), "application/yaml")
}
