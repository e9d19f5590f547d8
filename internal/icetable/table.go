package icetable

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/zeebo/xxh3"

	"ratesetl/internal/objstore"
	"ratesetl/internal/records"
)

const (
	formatVersion = 1
	hintObject    = "version-hint.text"
)

// dataFile is one manifest entry.
type dataFile struct {
	// Path is relative to the table root, e.g. "data/<uuid>.ndjson".
	Path     string `json:"path"`
	Rows     int64  `json:"rows"`
	Checksum string `json:"checksum"`
}

// snapshot records one committed mutation.
type snapshot struct {
	ID           string `json:"id"`
	Timestamp    string `json:"timestamp"`
	Operation    string `json:"operation"`
	AddedFiles   int    `json:"added_files"`
	RemovedFiles int    `json:"removed_files"`
	TotalRows    int64  `json:"total_rows"`
}

// tableMetadata is the JSON document stored per metadata version.
type tableMetadata struct {
	FormatVersion int        `json:"format_version"`
	Table         string     `json:"table"`
	Version       int        `json:"version"`
	Schema        Schema     `json:"schema"`
	Files         []dataFile `json:"files"`
	Snapshots     []snapshot `json:"snapshots"`
}

func (m tableMetadata) totalRows() int64 {
	var n int64
	for _, f := range m.Files {
		n += f.Rows
	}
	return n
}

// CatalogConfig locates the warehouse in the object store. BucketName is only
// used to render metadata location URIs; reads and writes go through Bucket.
type CatalogConfig struct {
	Bucket     objstore.Bucket
	BucketName string
	Prefix     string
}

// NewCatalog returns a Catalog persisting tables under cfg.Prefix in the
// given bucket.
func NewCatalog(cfg CatalogConfig, logger logrus.FieldLogger) (Catalog, error) {
	if cfg.Bucket == nil {
		return nil, errors.New("icetable: bucket is required")
	}
	return &objCatalog{cfg: cfg, logger: logger}, nil
}

type objCatalog struct {
	cfg    CatalogConfig
	logger logrus.FieldLogger
}

func (c *objCatalog) nsKey(namespace string) string {
	return path.Join(c.cfg.Prefix, namespace, ".namespace")
}

func (c *objCatalog) tableRoot(id Ident) string {
	return path.Join(c.cfg.Prefix, id.Namespace, id.Name)
}

func (c *objCatalog) EnsureNamespace(ctx context.Context, namespace string) error {
	key := c.nsKey(namespace)
	objs, err := c.cfg.Bucket.List(ctx, key, 1)
	if err != nil {
		return errors.Wrapf(err, "check namespace %q", namespace)
	}
	if len(objs) > 0 {
		return nil
	}
	if err := c.cfg.Bucket.Put(ctx, key, strings.NewReader(""), 0); err != nil {
		return errors.Wrapf(err, "create namespace %q", namespace)
	}
	c.logger.WithField("namespace", namespace).Info("created namespace")
	return nil
}

func (c *objCatalog) LoadTable(ctx context.Context, id Ident) (Table, error) {
	t := &objTable{cat: c, id: id}
	version, err := t.readHint(ctx)
	if err != nil {
		return nil, err
	}
	if version == 0 {
		return nil, errors.Wrap(ErrTableNotFound, id.String())
	}
	meta, err := t.readMetadata(ctx, version)
	if err != nil {
		return nil, err
	}
	t.meta = meta
	return t, nil
}

func (c *objCatalog) CreateTable(ctx context.Context, id Ident, schema Schema) (Table, error) {
	t := &objTable{cat: c, id: id}
	if version, err := t.readHint(ctx); err != nil {
		return nil, err
	} else if version != 0 {
		return nil, errors.Errorf("icetable: table %s already exists at version %d", id, version)
	}
	t.meta = tableMetadata{
		FormatVersion: formatVersion,
		Table:         id.String(),
		Schema:        schema,
	}
	if err := t.commit(ctx, snapshot{Operation: "create"}); err != nil {
		return nil, err
	}
	c.logger.WithFields(logrus.Fields{
		"table":  id.String(),
		"fields": len(schema.Fields),
	}).Info("created table")
	return t, nil
}

// objTable is the object-store-backed Table. Not safe for concurrent use;
// the pipeline is the single writer.
type objTable struct {
	cat  *objCatalog
	id   Ident
	meta tableMetadata
}

func (t *objTable) root() string    { return t.cat.tableRoot(t.id) }
func (t *objTable) hintKey() string { return path.Join(t.root(), "metadata", hintObject) }
func (t *objTable) metaKey(version int) string {
	return path.Join(t.root(), "metadata", fmt.Sprintf("v%d.metadata.json", version))
}

func (t *objTable) Schema() Schema { return t.meta.Schema }

func (t *objTable) MetadataLocation() string {
	return fmt.Sprintf("s3://%s/%s", t.cat.cfg.BucketName, t.metaKey(t.meta.Version))
}

// readHint returns the current version, or 0 when the table does not exist.
func (t *objTable) readHint(ctx context.Context) (int, error) {
	rc, err := t.cat.cfg.Bucket.Get(ctx, t.hintKey())
	if err != nil {
		if errors.Is(err, objstore.ErrNotFound) {
			return 0, nil
		}
		// Stores without a typed missing-key error: treat an absent hint the
		// same as no table only when a cheap existence probe agrees.
		objs, lerr := t.cat.cfg.Bucket.List(ctx, t.hintKey(), 1)
		if lerr == nil && len(objs) == 0 {
			return 0, nil
		}
		return 0, errors.Wrapf(err, "read version hint for %s", t.id)
	}
	defer rc.Close()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(rc); err != nil {
		return 0, errors.Wrapf(err, "read version hint for %s", t.id)
	}
	version, err := strconv.Atoi(strings.TrimSpace(buf.String()))
	if err != nil {
		return 0, errors.Wrapf(err, "parse version hint %q for %s", buf.String(), t.id)
	}
	return version, nil
}

func (t *objTable) readMetadata(ctx context.Context, version int) (tableMetadata, error) {
	var meta tableMetadata
	rc, err := t.cat.cfg.Bucket.Get(ctx, t.metaKey(version))
	if err != nil {
		return meta, errors.Wrapf(err, "read metadata v%d for %s", version, t.id)
	}
	defer rc.Close()
	if err := json.NewDecoder(rc).Decode(&meta); err != nil {
		return meta, errors.Wrapf(err, "decode metadata v%d for %s", version, t.id)
	}
	return meta, nil
}

// commit writes the next metadata version and advances the hint.
func (t *objTable) commit(ctx context.Context, snap snapshot) error {
	next := t.meta.Version + 1
	t.meta.Version = next
	t.meta.FormatVersion = formatVersion

	snap.ID = uuid.NewString()
	snap.Timestamp = time.Now().UTC().Format(time.RFC3339)
	snap.TotalRows = t.meta.totalRows()
	t.meta.Snapshots = append(t.meta.Snapshots, snap)

	data, err := json.MarshalIndent(t.meta, "", "  ")
	if err != nil {
		return errors.Wrapf(err, "encode metadata v%d for %s", next, t.id)
	}
	if err := t.cat.cfg.Bucket.Put(ctx, t.metaKey(next), bytes.NewReader(data), int64(len(data))); err != nil {
		return errors.Wrapf(err, "write metadata v%d for %s", next, t.id)
	}
	hint := strconv.Itoa(next)
	if err := t.cat.cfg.Bucket.Put(ctx, t.hintKey(), strings.NewReader(hint), int64(len(hint))); err != nil {
		return errors.Wrapf(err, "advance version hint for %s", t.id)
	}
	return nil
}

func (t *objTable) UpdateSchema(ctx context.Context, unioned Schema) error {
	// Additive only: every current field must survive with its type.
	for _, f := range t.meta.Schema.Fields {
		found := false
		for _, nf := range unioned.Fields {
			if nf.Name == f.Name {
				if nf.Type != f.Type {
					return errors.Errorf("icetable: field %q retyped %s -> %s", f.Name, f.Type, nf.Type)
				}
				found = true
				break
			}
		}
		if !found {
			return errors.Errorf("icetable: field %q dropped by schema update", f.Name)
		}
	}
	t.meta.Schema = unioned
	return t.commit(ctx, snapshot{Operation: "schema"})
}

func (t *objTable) Append(ctx context.Context, rows []records.Record) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	df, err := t.writeDataFile(ctx, rows)
	if err != nil {
		return 0, err
	}
	t.meta.Files = append(t.meta.Files, df)
	if err := t.commit(ctx, snapshot{Operation: "append", AddedFiles: 1}); err != nil {
		return 0, err
	}
	return int64(len(rows)), nil
}

func (t *objTable) Delete(ctx context.Context, pred Predicate) (int64, error) {
	if pred.Empty() {
		return 0, nil
	}

	var (
		kept    []dataFile
		removed int64
		added   int
		dropped int
	)
	for _, df := range t.meta.Files {
		rows, err := t.readDataFile(ctx, df)
		if err != nil {
			return 0, err
		}
		survivors := rows[:0]
		for _, rec := range rows {
			if pred.Match(rec) {
				removed++
			} else {
				survivors = append(survivors, rec)
			}
		}
		if int64(len(survivors)) == df.Rows {
			kept = append(kept, df)
			continue
		}
		// File contents changed: rewrite survivors into a fresh file and
		// drop the old object.
		dropped++
		if len(survivors) > 0 {
			nf, err := t.writeDataFile(ctx, survivors)
			if err != nil {
				return 0, err
			}
			kept = append(kept, nf)
			added++
		}
		if err := t.cat.cfg.Bucket.Remove(ctx, path.Join(t.root(), df.Path)); err != nil {
			return 0, err
		}
	}

	if removed == 0 {
		return 0, nil
	}
	t.meta.Files = kept
	if err := t.commit(ctx, snapshot{Operation: "delete", AddedFiles: added, RemovedFiles: dropped}); err != nil {
		return 0, err
	}
	return removed, nil
}

func (t *objTable) Scan(ctx context.Context) ([]records.Record, error) {
	var out []records.Record
	for _, df := range t.meta.Files {
		rows, err := t.readDataFile(ctx, df)
		if err != nil {
			return nil, err
		}
		out = append(out, rows...)
	}
	return out, nil
}

func (t *objTable) writeDataFile(ctx context.Context, rows []records.Record) (dataFile, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, rec := range rows {
		if err := enc.Encode(rec); err != nil {
			return dataFile{}, errors.Wrapf(err, "encode row for %s", t.id)
		}
	}

	df := dataFile{
		Path:     path.Join("data", uuid.NewString()+".ndjson"),
		Rows:     int64(len(rows)),
		Checksum: fmt.Sprintf("%016x", xxh3.Hash(buf.Bytes())),
	}
	key := path.Join(t.root(), df.Path)
	if err := t.cat.cfg.Bucket.Put(ctx, key, bytes.NewReader(buf.Bytes()), int64(buf.Len())); err != nil {
		return dataFile{}, errors.Wrapf(err, "write data file %q", key)
	}
	return df, nil
}

func (t *objTable) readDataFile(ctx context.Context, df dataFile) ([]records.Record, error) {
	key := path.Join(t.root(), df.Path)
	rc, err := t.cat.cfg.Bucket.Get(ctx, key)
	if err != nil {
		return nil, errors.Wrapf(err, "read data file %q", key)
	}
	defer rc.Close()

	var out []records.Record
	sc := bufio.NewScanner(rc)
	sc.Buffer(make([]byte, 64<<10), 4<<20)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		rec, err := decodeStoredRow(line)
		if err != nil {
			return nil, errors.Wrapf(err, "decode row in %q", key)
		}
		out = append(out, rec)
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrapf(err, "scan data file %q", key)
	}
	return out, nil
}

// decodeStoredRow parses one stored row, restoring the typed rates map.
func decodeStoredRow(line string) (records.Record, error) {
	dec := json.NewDecoder(strings.NewReader(line))
	dec.UseNumber()
	var obj map[string]any
	if err := dec.Decode(&obj); err != nil {
		return nil, err
	}
	rec := records.Record(obj)
	if raw, ok := obj[records.FieldRates].(map[string]any); ok {
		rates := make(map[string]float64, len(raw))
		for k, v := range raw {
			if n, ok := v.(json.Number); ok {
				if f, err := n.Float64(); err == nil {
					rates[k] = f
				}
			}
		}
		rec[records.FieldRates] = rates
	}
	return rec, nil
}
