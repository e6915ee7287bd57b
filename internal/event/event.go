// Event names and the bus used to fan them out to interested parts of the
// gateway, typically redirecting the handling to a service method or logger.
package event

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/hbomb79/hlsgate/internal/identity"
	"github.com/hbomb79/hlsgate/pkg/logger"
)

var log = logger.Get("Events")

type (
	Event         string
	Payload       any
	HandlerMethod func(Event, Payload)

	HandlerChannel chan HandlerEvent
	HandlerEvent   struct {
		Event   Event
		Payload Payload
	}

	EventDispatcher interface {
		Dispatch(Event, Payload)
	}

	EventHandler interface {
		RegisterAsyncHandlerFunction(Event, HandlerMethod)
		RegisterHandlerFunction(Event, HandlerMethod)
		RegisterHandlerChannel(HandlerChannel, ...Event)
	}

	EventCoordinator interface {
		EventDispatcher
		EventHandler
	}

	eventHandler struct {
		fnHandlers   map[Event][]handlerMethod
		chanHandlers map[Event][]HandlerChannel
	}

	handlerMethod struct {
		handle HandlerMethod
		async  bool
	}
)

const (
	// JOB_UPDATE is dispatched whenever a job changes state. Payload is the job key.
	JOB_UPDATE Event = "job:update"

	// JOB_EVICTED is dispatched once a job has been removed from the registry
	// and its output deleted. Payload is the job key.
	JOB_EVICTED Event = "job:evicted"
)

// New creates an event bus. Handlers must all be registered before
// the first Dispatch.
func New() EventCoordinator {
	return &eventHandler{
		fnHandlers:   make(map[Event][]handlerMethod),
		chanHandlers: make(map[Event][]HandlerChannel),
	}
}

// RegisterHandlerChannel sends a HandlerEvent on the channel provided any time
// one of the events is dispatched.
//
// If the channel is blocked when an event is dispatched then the dispatching
// goroutine is blocked as well, so buffer handler channels appropriately.
func (handler *eventHandler) RegisterHandlerChannel(handle HandlerChannel, events ...Event) {
	for _, event := range events {
		handler.chanHandlers[event] = append(handler.chanHandlers[event], handle)
	}
}

// RegisterHandlerFunction stores a handler which is called synchronously with the
// payload of the event each time it is dispatched. The handler should return quickly.
func (handler *eventHandler) RegisterHandlerFunction(event Event, handle HandlerMethod) {
	handler.registerHandlerMethod(event, handlerMethod{handle, false})
}

// RegisterAsyncHandlerFunction stores a handler which is called inside
// of a new goroutine each time the event is dispatched.
func (handler *eventHandler) RegisterAsyncHandlerFunction(event Event, handle HandlerMethod) {
	handler.registerHandlerMethod(event, handlerMethod{handle, true})
}

func (handler *eventHandler) registerHandlerMethod(event Event, handle handlerMethod) {
	handler.fnHandlers[event] = append(handler.fnHandlers[event], handle)
}

// Dispatch validates the payload for the event and then hands it to every
// handler registered for it. Blocks while synchronous handlers run.
func (handler *eventHandler) Dispatch(event Event, payload Payload) {
	if err := handler.validatePayload(event, payload); err != nil {
		log.Emit(logger.ERROR, "Dispatch for event %v FAILED validation: %v\n", event, err)
		return
	}

	for _, handle := range handler.fnHandlers[event] {
		if handle.async {
			go handle.handle(event, payload)
		} else {
			handle.handle(event, payload)
		}
	}

	if handles, ok := handler.chanHandlers[event]; ok {
		payload := HandlerEvent{event, payload}
		for _, handle := range handles {
			handle <- payload
		}
	}
}

// validatePayload ensures that the payload provided is valid for the event specified.
func (handler *eventHandler) validatePayload(event Event, payload Payload) error {
	var payloadTypeName string
	if t := reflect.TypeOf(payload); t != nil {
		payloadTypeName = t.Name()
	} else {
		payloadTypeName = "Nil"
	}

	switch event {
	case JOB_UPDATE, JOB_EVICTED:
		key, ok := payload.(string)
		if !ok {
			return fmt.Errorf("illegal payload (type %s) for %s event. Expected string payload", payloadTypeName, event)
		}
		if !identity.IsKey(key) {
			return fmt.Errorf("illegal payload for %s event: %q is not a job key", event, key)
		}

		return nil
	}

	return errors.New("event type not recognized for validation")
}
