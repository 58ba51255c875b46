package db_test

import (
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/bwcc-clan/polebot-go/internal/db"
	"github.com/bwcc-clan/polebot-go/internal/model"
	"github.com/bwcc-clan/polebot-go/internal/orchestrator"
	"github.com/bwcc-clan/polebot-go/internal/testutil"
)

// ServerRepositorySuite exercises db.ServerRepository against a real
// Postgres instance, started once per suite via internal/testutil.
type ServerRepositorySuite struct {
	suite.Suite
	repo *db.ServerRepository
}

func (s *ServerRepositorySuite) SetupSuite() {
	pool := testutil.SetupTestDB(s.T())
	s.repo = db.NewServerRepository(pool)
}

func (s *ServerRepositorySuite) TestInsertAndGet() {
	created, err := s.repo.Insert(s.T().Context(), orchestrator.ManagedServer{
		GuildID:     "guild-1",
		Label:       "server-one",
		APIURL:      "https://crcon.example.com",
		APIKey:      "secret",
		RCONHeaders: map[string]string{"X-Extra": "1"},
	})
	s.Require().NoError(err)
	s.Require().NotEmpty(created.ID)

	fetched, err := s.repo.Get(s.T().Context(), created.ID)
	s.Require().NoError(err)
	s.Require().NotNil(fetched)
	s.Equal("server-one", fetched.Label)
	s.Equal(map[string]string{"X-Extra": "1"}, fetched.RCONHeaders)
	s.Nil(fetched.Weighting)
}

func (s *ServerRepositorySuite) TestInsertDuplicateLabelIsRejected() {
	_, err := s.repo.Insert(s.T().Context(), orchestrator.ManagedServer{
		GuildID: "guild-2", Label: "dup", APIURL: "https://a.example.com", APIKey: "k",
	})
	s.Require().NoError(err)

	_, err = s.repo.Insert(s.T().Context(), orchestrator.ManagedServer{
		GuildID: "guild-2", Label: "dup", APIURL: "https://b.example.com", APIKey: "k",
	})
	s.Require().Error(err)

	var dupErr *orchestrator.DuplicateError
	s.Require().ErrorAs(err, &dupErr)
	s.Equal("label", dupErr.Field)
}

func (s *ServerRepositorySuite) TestInsertDuplicateAPIURLIsRejected() {
	_, err := s.repo.Insert(s.T().Context(), orchestrator.ManagedServer{
		GuildID: "guild-3", Label: "first", APIURL: "https://same.example.com", APIKey: "k",
	})
	s.Require().NoError(err)

	_, err = s.repo.Insert(s.T().Context(), orchestrator.ManagedServer{
		GuildID: "guild-3", Label: "second", APIURL: "https://same.example.com", APIKey: "k",
	})
	s.Require().Error(err)

	var dupErr *orchestrator.DuplicateError
	s.Require().ErrorAs(err, &dupErr)
	s.Equal("api_url", dupErr.Field)
}

func (s *ServerRepositorySuite) TestUpdateWeightingAndVotemapEnabledRoundTrip() {
	created, err := s.repo.Insert(s.T().Context(), orchestrator.ManagedServer{
		GuildID: "guild-4", Label: "weighted", APIURL: "https://weighted.example.com", APIKey: "k",
	})
	s.Require().NoError(err)

	weighting := &model.WeightingParameters{
		Groups: map[string]model.MapGroup{
			"offensive": {Weight: 50, RepeatDecay: 0.5, Maps: []string{"map_1"}},
		},
	}
	s.Require().NoError(s.repo.UpdateWeighting(s.T().Context(), created.ID, weighting))
	s.Require().NoError(s.repo.UpdateVotemapEnabled(s.T().Context(), created.ID, true))

	fetched, err := s.repo.Get(s.T().Context(), created.ID)
	s.Require().NoError(err)
	s.Require().NotNil(fetched.Weighting)
	s.Equal(weighting.Groups["offensive"].Weight, fetched.Weighting.Groups["offensive"].Weight)
	s.True(fetched.VotemapEnabled)
}

func (s *ServerRepositorySuite) TestDeleteMissingIDIsNotAnError() {
	s.Require().NoError(s.repo.Delete(s.T().Context(), "00000000-0000-0000-0000-000000000000"))
}

func (s *ServerRepositorySuite) TestGetMissingIDReturnsNilNotError() {
	fetched, err := s.repo.Get(s.T().Context(), "00000000-0000-0000-0000-000000000000")
	s.Require().NoError(err)
	s.Nil(fetched)
}

func TestServerRepositorySuite(t *testing.T) {
	suite.Run(t, new(ServerRepositorySuite))
}
