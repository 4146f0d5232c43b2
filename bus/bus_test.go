// Copyright Brigham Young University 2025, 2026
// SPDX-License-Identifier: MPL-2.0

package bus

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBus_PublishOrder(t *testing.T) {
	t.Parallel()
	assert := assert.New(t)
	b := New()
	ctx := context.Background()

	var got []string
	b.Subscribe("topic", func(_ context.Context, p interface{}) { got = append(got, "first:"+p.(string)) })
	b.Subscribe("topic", func(_ context.Context, p interface{}) { got = append(got, "second:"+p.(string)) })
	b.Subscribe("other", func(_ context.Context, p interface{}) { got = append(got, "other") })

	b.Publish(ctx, "topic", "a")
	assert.Equal([]string{"first:a", "second:a"}, got)
	assert.Equal(2, b.Subscribers("topic"))
	assert.Equal(0, b.Subscribers("missing"))
}

func TestBus_Unsubscribe(t *testing.T) {
	t.Parallel()
	assert := assert.New(t)
	b := New()
	ctx := context.Background()

	calls := 0
	unsub := b.Subscribe("topic", func(context.Context, interface{}) { calls++ })
	b.Publish(ctx, "topic", nil)
	unsub()
	unsub()
	b.Publish(ctx, "topic", nil)
	assert.Equal(1, calls)
	assert.Equal(0, b.Subscribers("topic"))
}

func TestBus_SubscribeDuringPublish(t *testing.T) {
	t.Parallel()
	assert := assert.New(t)
	b := New()
	ctx := context.Background()

	late := 0
	b.Subscribe("topic", func(context.Context, interface{}) {
		b.Subscribe("topic", func(context.Context, interface{}) { late++ })
	})
	b.Publish(ctx, "topic", nil)
	assert.Equal(0, late)
	b.Publish(ctx, "topic", nil)
	assert.Equal(1, late)
}
