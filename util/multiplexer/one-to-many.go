// Copyright (c) 2024 mStar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package multiplexer

import (
	"errors"
	"sync"
)

var ErrClosed = errors.New("multiplexer has been closed")

// OneToMany fans messages out to named subscriber channels.
// Raw channels can't do this directly since every value goes to
// exactly one receiver, so wrap the bookkeeping in a struct.
type OneToMany[T any] struct {
	lock     sync.Mutex
	outbound map[string]chan T
	closed   bool
}

func NewOneToMany[T any]() *OneToMany[T] {
	return &OneToMany[T]{
		outbound: make(map[string]chan T),
	}
}

// Subscribe registers a new receiver under the given name.
// The returned channel is closed by Unsubscribe or Close, never by the caller.
func (o *OneToMany[T]) Subscribe(name string, depth int) (<-chan T, error) {
	o.lock.Lock()
	defer o.lock.Unlock()
	if o.closed {
		return nil, ErrClosed
	}
	if _, ok := o.outbound[name]; ok {
		return nil, errors.New("receiver with that name already exists")
	}
	rec := make(chan T, depth)
	o.outbound[name] = rec
	return rec, nil
}

// Unsubscribe closes and removes the receiver with the given name
func (o *OneToMany[T]) Unsubscribe(name string) {
	o.lock.Lock()
	defer o.lock.Unlock()
	if o.closed {
		return
	}
	if rec, ok := o.outbound[name]; ok {
		close(rec)
		delete(o.outbound, name)
	}
}

// Publish hands msg to every current subscriber.
// A subscriber with a full buffer misses the message rather than
// stalling the publisher.
func (o *OneToMany[T]) Publish(msg T) error {
	o.lock.Lock()
	defer o.lock.Unlock()
	if o.closed {
		return ErrClosed
	}
	for _, rec := range o.outbound {
		select {
		case rec <- msg:
		default:
		}
	}
	return nil
}

// Close shuts down all subscriber channels and rejects further use
func (o *OneToMany[T]) Close() {
	o.lock.Lock()
	defer o.lock.Unlock()
	if o.closed {
		return
	}
	for _, rec := range o.outbound {
		close(rec)
	}
	o.outbound = nil
	o.closed = true
}
