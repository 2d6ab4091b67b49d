package config

import (
	"testing"

	"github.com/stretchr/testify/require"

	commonserrors "github.com/alexisbeaulieu97/commons/pkg/errors"
)

func entry(op, current, next string) Entry {
	return Entry{Operation: op, CurrentVersion: current, NextVersion: next, Enabled: true}
}

func TestValidateDocument(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name      string
		doc       *Document
		wantField string
	}{
		{
			name: "valid ascending entries",
			doc: &Document{Upgrades: []Entry{
				entry("findReplace", "1.0", "1.1"),
				entry("deleteFiles", "1.1", "2.0"),
			}},
		},
		{
			name: "multiple entries may share a transition",
			doc: &Document{Upgrades: []Entry{
				entry("backup", "1.0", "1.1"),
				entry("findReplace", "1.0", "1.1"),
			}},
		},
		{
			name:      "nil document",
			doc:       nil,
			wantField: "",
		},
		{
			name:      "missing operation",
			doc:       &Document{Upgrades: []Entry{entry("", "1.0", "1.1")}},
			wantField: "upgrades[0].operation",
		},
		{
			name:      "invalid operation name",
			doc:       &Document{Upgrades: []Entry{entry("9lives", "1.0", "1.1")}},
			wantField: "upgrades[0].operation",
		},
		{
			name:      "unparsable version",
			doc:       &Document{Upgrades: []Entry{entry("findReplace", "one", "1.1")}},
			wantField: "upgrades[0].currentVersion",
		},
		{
			name:      "missing next version",
			doc:       &Document{Upgrades: []Entry{entry("findReplace", "1.0", "")}},
			wantField: "upgrades[0].nextVersion",
		},
		{
			name:      "next version must move forward",
			doc:       &Document{Upgrades: []Entry{entry("findReplace", "1.1", "1.0")}},
			wantField: "upgrades[0].nextVersion",
		},
		{
			name: "descending declaration order",
			doc: &Document{Upgrades: []Entry{
				entry("findReplace", "2.0", "2.1"),
				entry("deleteFiles", "1.0", "1.1"),
			}},
			wantField: "upgrades[1].currentVersion",
		},
		{
			name: "named pipeline is validated",
			doc: &Document{Pipelines: map[string]Pipeline{
				"site": {Upgrades: []Entry{entry("findReplace", "1.0", "0.5")}},
			}},
			wantField: "pipelines.site.upgrades[0].nextVersion",
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			err := ValidateDocument(tc.doc)
			if tc.wantField == "" && tc.doc != nil {
				require.NoError(t, err)
				return
			}

			var validationErr *commonserrors.ValidationError
			require.ErrorAs(t, err, &validationErr)
			require.Equal(t, tc.wantField, validationErr.Field)
		})
	}
}
