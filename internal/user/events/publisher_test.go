package events_test

import (
	"context"
	"testing"

	"github.com/medistock/medistock-backend/internal/user/domain"
	"github.com/medistock/medistock-backend/internal/user/events"
	"github.com/medistock/medistock-backend/pkg/logger"
	"github.com/medistock/medistock-backend/pkg/messaging"
	"github.com/medistock/medistock-backend/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPublisher() (*events.UserEventPublisher, *testutil.MockPublisher) {
	mock := testutil.NewMockPublisher()
	return events.NewWithPublisher(mock, logger.New("user-events-test", "test")), mock
}

func TestPublishUserCreated_CarriesTenant(t *testing.T) {
	p, mock := newPublisher()
	user := &domain.User{
		UID:      "uid-1",
		TenantID: testutil.TestTenantID,
		Email:    "erika@example.com",
		FullName: "Erika Muster",
		Role:     "Staff",
	}

	p.PublishUserCreated(context.Background(), user)

	require.Len(t, mock.PublishedEvents, 1)
	assert.Equal(t, messaging.EventUserCreated, mock.PublishedEvents[0].Type)
	data := mock.PublishedEvents[0].Payload.(messaging.UserCreatedEvent)
	assert.Equal(t, "uid-1", data.UserID)
	assert.Equal(t, testutil.TestTenantID, data.TenantID)
	assert.Equal(t, "Erika Muster", data.FullName)
	assert.Equal(t, "Staff", data.Role)
}

func TestPublishUserRoleChanged(t *testing.T) {
	p, mock := newPublisher()

	p.PublishUserRoleChanged(context.Background(), testutil.TestTenantID, "uid-1", "Staff", "Admin")

	mock.AssertEventPublished(t, messaging.EventUserRoleChanged)
	data := mock.PublishedEvents[0].Payload.(messaging.UserRoleChangedEvent)
	assert.Equal(t, "Staff", data.OldRole)
	assert.Equal(t, "Admin", data.NewRole)
}

func TestPublishUserDeleted(t *testing.T) {
	p, mock := newPublisher()

	p.PublishUserDeleted(context.Background(), &domain.User{UID: "uid-2", Email: "max@example.com", TenantID: "t1"})

	mock.AssertEventPublished(t, messaging.EventUserDeleted)
	data := mock.PublishedEvents[0].Payload.(messaging.UserDeletedEvent)
	assert.Equal(t, "max@example.com", data.Email)
}

func TestNilUserPublisherDropsEvents(t *testing.T) {
	var p *events.UserEventPublisher
	assert.NotPanics(t, func() {
		p.PublishUserCreated(context.Background(), &domain.User{})
		p.PublishUserDeleted(context.Background(), &domain.User{})
		p.PublishUserRoleChanged(context.Background(), "t1", "u1", "Staff", "Admin")
	})
}
