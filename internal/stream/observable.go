package stream

// Observer receives notifications from an Observable.
type Observer interface {
	Next(v any)
	Error(err error)
	Complete()
}

// ObserverFuncs adapts plain functions to Observer. Nil fields are no-ops.
type ObserverFuncs struct {
	NextFunc     func(v any)
	ErrorFunc    func(err error)
	CompleteFunc func()
}

func (o ObserverFuncs) Next(v any) {
	if o.NextFunc != nil {
		o.NextFunc(v)
	}
}

func (o ObserverFuncs) Error(err error) {
	if o.ErrorFunc != nil {
		o.ErrorFunc(err)
	}
}

func (o ObserverFuncs) Complete() {
	if o.CompleteFunc != nil {
		o.CompleteFunc()
	}
}

// Subscription is the handle returned by Subscribe.
type Subscription interface {
	Unsubscribe()
	Closed() bool
}

// Observable is a lazily started stream of notifications.
type Observable interface {
	Subscribe(o Observer) Subscription
}

// ObservableFunc turns a producer function into an Observable. The producer
// receives a fresh Subscriber per subscription; it emits through it and
// registers teardown logic with Add.
type ObservableFunc func(sub *Subscriber)

// Subscribe wraps o in a Subscriber and runs the producer.
func (f ObservableFunc) Subscribe(o Observer) Subscription {
	sub := NewSubscriber(o)
	f(sub)
	return sub
}

// Operator transforms one observable into another.
type Operator func(Observable) Observable

// Pipe applies ops to src left to right.
func Pipe(src Observable, ops ...Operator) Observable {
	out := src
	for _, op := range ops {
		out = op(out)
	}
	return out
}
