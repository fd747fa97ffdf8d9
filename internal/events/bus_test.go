package events

import (
	"encoding/json"
	"sync"
	"testing"
	"time"
)

func TestBus_PublishSubscribe(t *testing.T) {
	bus := New()
	received := make(chan WorkerCrashedEvent, 1)

	unsub := bus.Subscribe(func(e WorkerCrashedEvent) {
		received <- e
	})
	defer unsub()

	event := WorkerCrashedEvent{
		ExitCode:     1,
		RestartCount: 2,
		WillRestart:  true,
		Delay:        "2s",
		Timestamp:    "2025-01-27T10:30:00Z",
	}
	bus.Publish(event)

	got := <-received
	if got.ExitCode != event.ExitCode {
		t.Errorf("Expected exit_code %d, got %d", event.ExitCode, got.ExitCode)
	}
	if !got.WillRestart {
		t.Error("Expected will_restart to be true")
	}
}

func TestBus_MultipleSubscribers(_ *testing.T) {
	bus := New()
	received1 := make(chan WorkerStateChangedEvent, 1)
	received2 := make(chan WorkerStateChangedEvent, 1)

	unsub1 := bus.Subscribe(func(e WorkerStateChangedEvent) {
		received1 <- e
	})
	defer unsub1()

	unsub2 := bus.Subscribe(func(e WorkerStateChangedEvent) {
		received2 <- e
	})
	defer unsub2()

	event := WorkerStateChangedEvent{OldState: "starting", NewState: "running"}
	bus.Publish(event)

	<-received1
	<-received2
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := New()
	received := make(chan DeploymentFinishedEvent, 1)

	unsub := bus.Subscribe(func(e DeploymentFinishedEvent) {
		received <- e
	})

	bus.Publish(DeploymentFinishedEvent{Outcome: "success"})
	<-received

	unsub()

	bus.Publish(DeploymentFinishedEvent{Outcome: "failed"})
	select {
	case <-received:
		t.Fatal("Should not have received event after unsubscribe")
	case <-time.After(10 * time.Millisecond):
		// Expected - no event
	}
}

func TestBus_TypeSafety(t *testing.T) {
	bus := New()

	crashReceived := make(chan bool, 1)
	deployReceived := make(chan bool, 1)

	unsub1 := bus.Subscribe(func(_ WorkerCrashedEvent) {
		crashReceived <- true
	})
	defer unsub1()

	unsub2 := bus.Subscribe(func(_ DeploymentFinishedEvent) {
		deployReceived <- true
	})
	defer unsub2()

	bus.Publish(WorkerCrashedEvent{ExitCode: 1})
	<-crashReceived

	select {
	case <-deployReceived:
		t.Fatal("Deploy subscriber should NOT have received WorkerCrashedEvent")
	case <-time.After(10 * time.Millisecond):
		// Expected
	}

	bus.Publish(DeploymentFinishedEvent{Outcome: "success"})
	<-deployReceived

	select {
	case <-crashReceived:
		t.Fatal("Crash subscriber should NOT have received DeploymentFinishedEvent")
	case <-time.After(10 * time.Millisecond):
		// Expected
	}
}

func TestBus_ThreadSafety(_ *testing.T) {
	bus := New()
	var wg sync.WaitGroup
	numGoroutines := 10
	eventsPerGoroutine := 100
	expected := numGoroutines * eventsPerGoroutine

	receivedCh := make(chan bool, expected)

	unsub := bus.Subscribe(func(_ WorkerStateChangedEvent) {
		receivedCh <- true
	})
	defer unsub()

	for range numGoroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range eventsPerGoroutine {
				bus.Publish(WorkerStateChangedEvent{
					OldState:  "running",
					NewState:  "crashed",
					Timestamp: time.Now().Format(time.RFC3339),
				})
			}
		}()
	}

	wg.Wait()

	// Read all expected events
	for range expected {
		<-receivedCh
	}
}

func TestEventJSONSerialization(t *testing.T) {
	tests := []struct {
		name  string
		event any
	}{
		{
			"WorkerCrashedEvent",
			WorkerCrashedEvent{
				ExitCode:     1,
				RestartCount: 3,
				WillRestart:  false,
				Timestamp:    "2025-01-27T10:30:00Z",
			},
		},
		{
			"DeploymentFinishedEvent",
			DeploymentFinishedEvent{
				Outcome:     "rolled_back",
				PreviousRef: "abc123",
				NewRef:      "def456",
				Timestamp:   "2025-01-27T10:30:00Z",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.event)
			if err != nil {
				t.Fatalf("Failed to marshal: %v", err)
			}

			var result map[string]any
			if unmarshalErr := json.Unmarshal(data, &result); unmarshalErr != nil {
				t.Fatalf("Failed to unmarshal: %v", unmarshalErr)
			}

			if len(result) == 0 {
				t.Fatal("Unmarshaled to empty object")
			}
		})
	}
}
