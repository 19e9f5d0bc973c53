package tests

import (
	"errors"

	"github.com/orderflow-labs/orderflow/pkg/utils"
	"go.uber.org/zap"
)

func (s *IntegrationTestSuite) TestDeduplication_SecondDeliveryIsSkipped() {
	calls := 0
	action := func() error {
		calls++
		return nil
	}

	logger := zap.NewNop()

	err := utils.ProcessWithDeduplication(s.Ctx, s.DbPool, logger, "group-a", 42, action)
	s.Require().NoError(err)
	s.Equal(1, calls)

	// Redelivery of the same event id runs no side effects.
	err = utils.ProcessWithDeduplication(s.Ctx, s.DbPool, logger, "group-a", 42, action)
	s.Require().NoError(err)
	s.Equal(1, calls)

	// A different consumer group processes the same event independently.
	err = utils.ProcessWithDeduplication(s.Ctx, s.DbPool, logger, "group-b", 42, action)
	s.Require().NoError(err)
	s.Equal(2, calls)
}

func (s *IntegrationTestSuite) TestDeduplication_FailedActionIsNotRecorded() {
	calls := 0
	failing := errors.New("transient failure")

	err := utils.ProcessWithDeduplication(s.Ctx, s.DbPool, zap.NewNop(), "group-a", 7, func() error {
		calls++
		return failing
	})
	s.Require().ErrorIs(err, failing)

	// The dedup row rolled back with the action, so a redelivery retries it.
	err = utils.ProcessWithDeduplication(s.Ctx, s.DbPool, zap.NewNop(), "group-a", 7, func() error {
		calls++
		return nil
	})
	s.Require().NoError(err)
	s.Equal(2, calls)
}
