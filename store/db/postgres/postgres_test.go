package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/talklens/talklens/store"
)

func TestPlaceholder(t *testing.T) {
	assert.Equal(t, "$1", placeholder(1))
	assert.Equal(t, "$12", placeholder(12))
}

func TestTalkOrderClause(t *testing.T) {
	assert.Equal(t, "published_at ASC, id ASC", talkOrderClause(store.OrderByDate, false))
	assert.Equal(t, "published_at DESC, id ASC", talkOrderClause("", true))
	assert.Equal(t, "views DESC, id ASC", talkOrderClause(store.OrderByViews, true))
	assert.Equal(t, "title ASC, id ASC", talkOrderClause(store.OrderByTitle, false))
	assert.Equal(t, "tech_level DESC, id ASC", talkOrderClause(store.OrderByTechLevel, true))
}
