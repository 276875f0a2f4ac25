package gen

import (
	"database/sql"
	"maps"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/syssam/daogen"
	"github.com/syssam/daogen/compiler/diag"
	"github.com/syssam/daogen/compiler/load"
)

// Settings is the effective configuration of one method after the process,
// repository and method levels have been merged.
type Settings struct {
	BatchSize  int
	FetchSize  int
	MaxRows    int
	Timeout    time.Duration
	NoRows     daogen.NoRowsPolicy
	NoMoreRows daogen.NoMoreRowsPolicy
	Keys       KeyStrategy
	// Tx is set when both isolation and readonly are configured.
	Tx        bool
	Isolation sql.IsolationLevel
	ReadOnly  bool
}

var isolationLevels = map[string]sql.IsolationLevel{
	"default":          sql.LevelDefault,
	"read_uncommitted": sql.LevelReadUncommitted,
	"read_committed":   sql.LevelReadCommitted,
	"write_committed":  sql.LevelWriteCommitted,
	"repeatable_read":  sql.LevelRepeatableRead,
	"snapshot":         sql.LevelSnapshot,
	"serializable":     sql.LevelSerializable,
	"linearizable":     sql.LevelLinearizable,
}

var isolationIdents = map[sql.IsolationLevel]string{
	sql.LevelDefault:         "LevelDefault",
	sql.LevelReadUncommitted: "LevelReadUncommitted",
	sql.LevelReadCommitted:   "LevelReadCommitted",
	sql.LevelWriteCommitted:  "LevelWriteCommitted",
	sql.LevelRepeatableRead:  "LevelRepeatableRead",
	sql.LevelSnapshot:        "LevelSnapshot",
	sql.LevelSerializable:    "LevelSerializable",
	sql.LevelLinearizable:    "LevelLinearizable",
}

// Keys accepted by //dao:config and the defaults section of daogen.yaml.
const (
	KeyBatchSize     = "batch_size"
	KeyFetchSize     = "fetch_size"
	KeyMaxRows       = "max_rows"
	KeyTimeout       = "timeout"
	KeyIsolation     = "isolation"
	KeyReadOnly      = "readonly"
	KeyNoRows        = "no_rows"
	KeyNoMoreRows    = "no_more_rows"
	KeyGeneratedKeys = "generated_keys"
)

var settingKeys = []string{
	KeyBatchSize, KeyFetchSize, KeyMaxRows, KeyTimeout, KeyIsolation,
	KeyReadOnly, KeyNoRows, KeyNoMoreRows, KeyGeneratedKeys,
}

// Merge layers configurations; later layers win key by key.
func Merge(layers ...load.Config) load.Config {
	out := make(load.Config)
	for _, l := range layers {
		maps.Copy(out, l)
	}
	return out
}

// ParseSettings validates a merged configuration. d supplies the default
// generated-key strategy.
func ParseSettings(d Dialect, cfg load.Config) (Settings, diag.Set) {
	s := Settings{BatchSize: daogen.DefaultBatchSize, Keys: d.Keys}
	var msgs diag.Set
	for _, key := range slices.Sorted(maps.Keys(cfg)) {
		if err := s.set(key, cfg[key]); err != "" {
			msgs = msgs.Merge(diag.Errorf("config %s=%q: %s", key, cfg[key], err))
		}
	}
	_, iso := cfg[KeyIsolation]
	_, ro := cfg[KeyReadOnly]
	switch {
	case iso && ro:
		s.Tx = true
	case iso || ro:
		msgs = msgs.Merge(diag.Errorf("config: isolation and readonly must be set together"))
	}
	return s, msgs
}

// ValidateSetting reports whether value is acceptable for key.
func ValidateSetting(key, value string) error {
	var s Settings
	if err := s.set(key, value); err != "" {
		return NewConfigError(key, value, err)
	}
	return nil
}

func (s *Settings) set(key, value string) string {
	value = strings.TrimSpace(value)
	switch key {
	case KeyBatchSize:
		n, err := strconv.Atoi(value)
		if err != nil || n < 1 {
			return "want a positive integer"
		}
		s.BatchSize = n
	case KeyFetchSize, KeyMaxRows:
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 {
			return "want a non-negative integer"
		}
		if key == KeyFetchSize {
			s.FetchSize = n
		} else {
			s.MaxRows = n
		}
	case KeyTimeout:
		d, err := parseTimeout(value)
		if err != nil || d < 0 {
			return "want a duration such as 5s, or whole seconds"
		}
		s.Timeout = d
	case KeyIsolation:
		lvl, ok := isolationLevels[strings.ToLower(value)]
		if !ok {
			return "unknown isolation level"
		}
		s.Isolation = lvl
	case KeyReadOnly:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return "want true or false"
		}
		s.ReadOnly = b
	case KeyNoRows:
		switch value {
		case "throw":
			s.NoRows = daogen.NoRowsThrow
		case "null":
			s.NoRows = daogen.NoRowsNull
		default:
			return "want throw or null"
		}
	case KeyNoMoreRows:
		switch value {
		case "throw":
			s.NoMoreRows = daogen.NoMoreRowsThrow
		case "ignore":
			s.NoMoreRows = daogen.NoMoreRowsIgnore
		default:
			return "want throw or ignore"
		}
	case KeyGeneratedKeys:
		switch value {
		case "use_generated_keys":
			s.Keys = UseGeneratedKeys
		case "requery":
			s.Keys = Requery
		default:
			return "want use_generated_keys or requery"
		}
	default:
		return "unknown key; want one of " + strings.Join(settingKeys, ", ")
	}
	return ""
}

func parseTimeout(v string) (time.Duration, error) {
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	return time.ParseDuration(v)
}
