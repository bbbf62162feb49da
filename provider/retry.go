//
// Tencent is pleased to support the open source community by making trpc-workflow-go available.
//
// Copyright (C) 2025 Tencent.
// All rights reserved.
//
// If you have downloaded a copy of the trpc-workflow-go source code from Tencent,
// please note that trpc-workflow-go source code is licensed under the  Apache 2.0 License,
// A copy of the Apache 2.0 License is included in this file.
//
//

package provider

import (
	"context"
	"errors"

	"trpc.group/trpc-go/trpc-workflow-go/internal/retry"
	"trpc.group/trpc-go/trpc-workflow-go/model"
)

// RetryableCondition matches provider errors worth another attempt.
func RetryableCondition() retry.Condition {
	return retry.OnPredicate(func(err error) bool {
		var pe *Error
		return errors.As(err, &pe) && pe.Retryable()
	})
}

type retrying struct {
	next   Gateway
	policy retry.Policy
}

// WithRetry wraps gw so that retryable failures are attempted again as long
// as no content has reached the caller yet. The engine does not install it;
// callers opt in when building the gateway.
func WithRetry(gw Gateway, policy retry.Policy) Gateway {
	if len(policy.RetryOn) == 0 {
		policy.RetryOn = []retry.Condition{RetryableCondition()}
	}
	return &retrying{next: gw, policy: policy}
}

// Invoke implements Gateway.
func (r *retrying) Invoke(ctx context.Context, req *Request) (<-chan *model.Response, error) {
	var (
		ch    <-chan *model.Response
		first *model.Response
	)
	err := retry.Do(ctx, r.policy, func(ctx context.Context) error {
		c, err := r.next.Invoke(ctx, req)
		if err != nil {
			return Classify(req.ModelID, err)
		}
		// Peek at the first response so that an immediate API error can be
		// retried before anything is forwarded.
		select {
		case rsp, ok := <-c:
			if ok && rsp != nil && rsp.Error != nil {
				for range c {
				}
				return FromResponse(req.ModelID, rsp.Error)
			}
			ch, first = c, rsp
			if !ok {
				first = nil
			}
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
	if err != nil {
		return nil, err
	}
	out := make(chan *model.Response, cap(ch)+1)
	go func() {
		defer close(out)
		if first != nil {
			select {
			case out <- first:
			case <-ctx.Done():
				return
			}
		}
		for rsp := range ch {
			select {
			case out <- rsp:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}
