// Package instrumented decorates a global ref database with opentracing spans.
package instrumented

import (
	"context"

	opentracing "github.com/opentracing/opentracing-go"

	"github.com/oneconcern/globalrefdb/pkg/model"
	"github.com/oneconcern/globalrefdb/pkg/refdb"
)

// NewRefDatabase creates an instrumented global ref database.
//
// The returned value implements refdb.Setter only when the wrapped database does.
func NewRefDatabase(tr opentracing.Tracer, w refdb.GlobalRefDatabase) refdb.GlobalRefDatabase {
	if tr == nil {
		tr = opentracing.NoopTracer{}
	}
	i := &instrumentedRefs{
		tr: tr,
		w:  w,
	}
	if s, ok := w.(refdb.Setter); ok {
		return &instrumentedSetter{instrumentedRefs: i, s: s}
	}
	return i
}

type instrumentedRefs struct {
	tr opentracing.Tracer
	w  refdb.GlobalRefDatabase
}

func (i *instrumentedRefs) IsUpToDate(ctx context.Context, project string, ref model.Ref) (result bool, err error) {
	traced(ctx, i.tr, "is up to date "+refdb.Key(project, ref.Name), func() { result, err = i.w.IsUpToDate(ctx, project, ref) })
	return
}

func (i *instrumentedRefs) CompareAndPut(ctx context.Context, project string, current model.Ref, newID model.ObjectID) (result bool, err error) {
	traced(ctx, i.tr, "compare and put "+refdb.Key(project, current.Name), func() { result, err = i.w.CompareAndPut(ctx, project, current, newID) })
	return
}

func (i *instrumentedRefs) CompareAndPutValue(ctx context.Context, project, refName string, expected, newValue refdb.Value) (result bool, err error) {
	traced(ctx, i.tr, "compare and put value "+refdb.Key(project, refName), func() {
		result, err = i.w.CompareAndPutValue(ctx, project, refName, expected, newValue)
	})
	return
}

func (i *instrumentedRefs) LockRef(ctx context.Context, project, refName string) (lock refdb.Lock, err error) {
	traced(ctx, i.tr, "lock "+refdb.Key(project, refName), func() { lock, err = i.w.LockRef(ctx, project, refName) })
	return
}

func (i *instrumentedRefs) Exists(ctx context.Context, project, refName string) (result bool, err error) {
	traced(ctx, i.tr, "exists "+refdb.Key(project, refName), func() { result, err = i.w.Exists(ctx, project, refName) })
	return
}

func (i *instrumentedRefs) Remove(ctx context.Context, project string) (err error) {
	traced(ctx, i.tr, "remove project "+project, func() { err = i.w.Remove(ctx, project) })
	return
}

func (i *instrumentedRefs) Get(ctx context.Context, project, refName string) (value refdb.Value, found bool, err error) {
	traced(ctx, i.tr, "get "+refdb.Key(project, refName), func() { value, found, err = i.w.Get(ctx, project, refName) })
	return
}

type instrumentedSetter struct {
	*instrumentedRefs
	s refdb.Setter
}

func (i *instrumentedSetter) Put(ctx context.Context, project, refName string, value refdb.Value) (err error) {
	traced(ctx, i.tr, "put "+refdb.Key(project, refName), func() { err = i.s.Put(ctx, project, refName, value) })
	return
}

func traced(ctx context.Context, tr opentracing.Tracer, name string, action func()) {
	parent := opentracing.SpanFromContext(ctx)
	var opts []opentracing.StartSpanOption
	if parent != nil {
		opts = append(opts, opentracing.ChildOf(parent.Context()))
	}
	span := tr.StartSpan(name, opts...)
	defer span.Finish()
	action()
}
