package events_test

import (
	"testing"

	"github.com/ardanlabs/ledger/foundation/events"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

func Test_Events(t *testing.T) {
	evts := events.New()

	t.Log("Given the need to fan node events out to listeners.")
	{
		ch1 := evts.Acquire("one")
		ch2 := evts.Acquire("two")

		evts.Send("worker: controlLoop: G started")

		for _, ch := range []chan string{ch1, ch2} {
			if got := <-ch; got != "worker: controlLoop: G started" {
				t.Logf("got: %s", got)
				t.Logf("exp: %s", "worker: controlLoop: G started")
				t.Fatalf("\t%s\tShould deliver the event to every listener.", failed)
			}
		}
		t.Logf("\t%s\tShould deliver the event to every listener.", success)

		if err := evts.Release("one"); err != nil {
			t.Fatalf("\t%s\tShould be able to release a listener: %s", failed, err)
		}
		if _, open := <-ch1; open {
			t.Fatalf("\t%s\tShould close a released channel.", failed)
		}
		t.Logf("\t%s\tShould close a released channel.", success)

		if err := evts.Release("one"); err == nil {
			t.Fatalf("\t%s\tShould not release an unknown listener.", failed)
		}
		t.Logf("\t%s\tShould not release an unknown listener.", success)

		evts.Shutdown()
		if _, open := <-ch2; open {
			t.Fatalf("\t%s\tShould close every channel on shutdown.", failed)
		}
		t.Logf("\t%s\tShould close every channel on shutdown.", success)
	}
}

func Test_Filters(t *testing.T) {
	evts := events.New(events.MiningProgress)
	defer evts.Shutdown()

	t.Log("Given the need to keep noisy events away from listeners.")
	{
		all := evts.Acquire("all")
		worker := evts.Acquire("worker", "worker")

		evts.Send("database: mine: MINING: nonce[100000]")
		evts.Send("database: mine: MINING: started: blk[1]")
		evts.Send("worker: handleMined: MINING: cancelled")

		exp := []string{"database: mine: MINING: started: blk[1]", "worker: handleMined: MINING: cancelled"}
		for _, e := range exp {
			if got := <-all; got != e {
				t.Logf("got: %s", got)
				t.Logf("exp: %s", e)
				t.Fatalf("\t%s\tShould drop the mining progress events.", failed)
			}
		}
		t.Logf("\t%s\tShould drop the mining progress events.", success)

		if got := <-worker; got != exp[1] {
			t.Logf("got: %s", got)
			t.Logf("exp: %s", exp[1])
			t.Fatalf("\t%s\tShould deliver only the events of the requested source.", failed)
		}
		select {
		case got := <-worker:
			t.Logf("got: %s", got)
			t.Fatalf("\t%s\tShould deliver only the events of the requested source.", failed)
		default:
		}
		t.Logf("\t%s\tShould deliver only the events of the requested source.", success)
	}
}

func Test_Parse(t *testing.T) {
	tt := []struct {
		name   string
		raw    string
		source string
		text   string
	}{
		{"source", "state: ProcessMessage: started", "state", "ProcessMessage: started"},
		{"nosource", "viewer connected", "", "viewer connected"},
		{"bracket", "blk[1]: hash[ab]: done", "", "blk[1]: hash[ab]: done"},
	}

	t.Log("Given the need to split events into their source and text.")
	{
		for testID, tst := range tt {
			f := func(t *testing.T) {
				ev := events.Parse(tst.raw)
				if ev.Source != tst.source || ev.Text != tst.text || ev.Raw != tst.raw {
					t.Logf("\t\tTest %d:\tgot: %+v", testID, ev)
					t.Logf("\t\tTest %d:\texp: source[%s] text[%s]", testID, tst.source, tst.text)
					t.Fatalf("\t%s\tTest %d:\tShould parse the event.", failed, testID)
				}
				t.Logf("\t%s\tTest %d:\tShould parse the event.", success, testID)
			}

			t.Run(tst.name, f)
		}
	}
}
