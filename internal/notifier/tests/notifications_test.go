package tests

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/orderflow-labs/orderflow/internal/notifier/domain"
	"github.com/orderflow-labs/orderflow/internal/notifier/service"
	"github.com/orderflow-labs/orderflow/internal/notifier/ws"
	generalDomain "github.com/orderflow-labs/orderflow/pkg/domain"
)

type recordingConn struct {
	frames []interface{}
}

func (c *recordingConn) WriteJSON(v interface{}) error {
	c.frames = append(c.frames, v)
	return nil
}

func (c *recordingConn) Close() error { return nil }

func (s *IntegrationTestSuite) seedNotifications(userID string, count int) {
	for i := 0; i < count; i++ {
		err := s.Repo.Create(s.Ctx, &domain.Notification{
			ID:      uuid.NewString(),
			UserID:  userID,
			OrderID: fmt.Sprintf("order-%d", i),
			Type:    domain.TypeOrderCreated,
			Title:   "Order Created",
			Message: fmt.Sprintf("notification %d", i),
		})
		s.Require().NoError(err)
	}
}

func (s *IntegrationTestSuite) TestHandleOrderStatus_StoresAndPushes() {
	conn := &recordingConn{}
	s.Hub.Register("user-1", conn)

	err := s.NotifierService.HandleOrderStatus(s.Ctx, &generalDomain.OrderStatusEvent{
		OrderID:         "order-1",
		UserID:          "user-1",
		Status:          "FAILED",
		InventoryStatus: "FAILED",
	})
	s.Require().NoError(err)

	stored, err := s.Repo.ListUnread(s.Ctx, "user-1")
	s.Require().NoError(err)
	s.Require().Len(stored, 1)
	s.Equal(domain.TypeOrderFailed, stored[0].Type)
	s.Equal("order-1", stored[0].OrderID)

	s.Require().Len(conn.frames, 1)
	frame, ok := conn.frames[0].(ws.Frame)
	s.Require().True(ok)
	s.Equal(ws.FrameOrderUpdate, frame.Type)
}

func (s *IntegrationTestSuite) TestHandleOrderStatus_NoConnectionStillStores() {
	err := s.NotifierService.HandleOrderStatus(s.Ctx, &generalDomain.OrderStatusEvent{
		OrderID:         "order-1",
		UserID:          "offline-user",
		Status:          "PENDING",
		InventoryStatus: "RESERVED",
	})
	s.Require().NoError(err)

	stored, err := s.Repo.ListUnread(s.Ctx, "offline-user")
	s.Require().NoError(err)
	s.Require().Len(stored, 1)
	s.Equal(domain.TypeStockReserved, stored[0].Type)
}

func (s *IntegrationTestSuite) TestListUnread_CapsBacklogAtFifty() {
	s.seedNotifications("user-1", 60)

	unread, err := s.Repo.ListUnread(s.Ctx, "user-1")
	s.Require().NoError(err)
	s.Len(unread, 50)

	// Oldest first so a reconnecting client replays in storage order.
	for i := 1; i < len(unread); i++ {
		s.False(unread[i].CreatedAt.Before(unread[i-1].CreatedAt))
	}
}

func (s *IntegrationTestSuite) TestMarkReadAndUnreadCount() {
	s.seedNotifications("user-1", 3)

	count, err := s.NotifierService.UnreadCount(s.Ctx, "user-1")
	s.Require().NoError(err)
	s.Equal(int64(3), count)

	unread, err := s.Repo.ListUnread(s.Ctx, "user-1")
	s.Require().NoError(err)

	s.Require().NoError(s.NotifierService.MarkRead(s.Ctx, unread[0].ID, "user-1"))

	count, err = s.NotifierService.UnreadCount(s.Ctx, "user-1")
	s.Require().NoError(err)
	s.Equal(int64(2), count)

	updated, err := s.NotifierService.MarkAllRead(s.Ctx, "user-1")
	s.Require().NoError(err)
	s.Equal(int64(2), updated)

	count, err = s.NotifierService.UnreadCount(s.Ctx, "user-1")
	s.Require().NoError(err)
	s.Equal(int64(0), count)
}

func (s *IntegrationTestSuite) TestMarkRead_ForeignNotificationIsForbidden() {
	s.seedNotifications("user-1", 1)

	unread, err := s.Repo.ListUnread(s.Ctx, "user-1")
	s.Require().NoError(err)

	err = s.NotifierService.MarkRead(s.Ctx, unread[0].ID, "user-2")
	s.Require().ErrorIs(err, service.ErrForbidden)

	err = s.NotifierService.DeleteNotification(s.Ctx, unread[0].ID, "user-2")
	s.Require().ErrorIs(err, service.ErrForbidden)
}

func (s *IntegrationTestSuite) TestDeleteNotification() {
	s.seedNotifications("user-1", 1)

	unread, err := s.Repo.ListUnread(s.Ctx, "user-1")
	s.Require().NoError(err)

	s.Require().NoError(s.NotifierService.DeleteNotification(s.Ctx, unread[0].ID, "user-1"))

	remaining, err := s.Repo.ListByUser(s.Ctx, "user-1")
	s.Require().NoError(err)
	s.Empty(remaining)
}
