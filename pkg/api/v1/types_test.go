package v1

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMissingWord_UnmarshalJSON(t *testing.T) {
	body := `{"total_sentences":3,"missing_words":["chat",{"french":"chien","english":"dog"},{"word":"maison"}]}`

	var rs ResultSet
	require.NoError(t, json.Unmarshal([]byte(body), &rs))
	assert.Equal(t, []MissingWord{"chat", "chien", "maison"}, rs.MissingWords)
}

func TestMissingWord_UnmarshalJSON_Invalid(t *testing.T) {
	var w MissingWord
	assert.Error(t, json.Unmarshal([]byte(`42`), &w))
	assert.Error(t, json.Unmarshal([]byte(`{"french":1}`), &w))
}

func TestProgress_ResultsOptional(t *testing.T) {
	var p Progress
	require.NoError(t, json.Unmarshal([]byte(`{"stage":"Loading word list...","words_covered":0,"sentences_selected":0,"complete":false}`), &p))
	assert.Nil(t, p.Results)
	assert.Equal(t, "Loading word list...", p.Stage)
	assert.False(t, p.Complete)
}
