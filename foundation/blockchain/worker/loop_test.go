package worker

import (
	"errors"
	"testing"

	"github.com/ardanlabs/ledger/foundation/blockchain/database"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

func Test_InconsistentPolicy(t *testing.T) {
	type table struct {
		name   string
		policy string
		fatal  bool
	}

	tt := []table{
		{name: "halt", policy: PolicyHalt, fatal: true},
		{name: "continue", policy: PolicyContinue, fatal: false},
		{name: "default", policy: "", fatal: true},
	}

	t.Log("Given the need to apply a policy when both chains are invalid.")
	{
		for testID, tst := range tt {
			f := func(t *testing.T) {
				t.Logf("\tTest %d:\tWhen handling the %q policy.", testID, tst.name)
				{
					var got error
					cfg := withDefaults(Config{
						Policy: tst.policy,
						Fatal:  func(err error) { got = err },
					})

					w := Worker{
						cfg:       cfg,
						evHandler: func(v string, args ...any) {},
					}

					w.inconsistent(database.ErrChainsInvalid)

					if (got != nil) != tst.fatal {
						t.Logf("\t\tTest %d:\tgot: %v", testID, got)
						t.Logf("\t\tTest %d:\texp: %v", testID, tst.fatal)
						t.Fatalf("\t%s\tTest %d:\tShould call Fatal only when the policy halts.", failed, testID)
					}
					t.Logf("\t%s\tTest %d:\tShould call Fatal only when the policy halts.", success, testID)

					if tst.fatal && !(errors.Is(got, ErrInconsistentLedger) && errors.Is(got, database.ErrChainsInvalid)) {
						t.Logf("\t\tTest %d:\tgot: %v", testID, got)
						t.Fatalf("\t%s\tTest %d:\tShould report an inconsistent ledger.", failed, testID)
					}
					t.Logf("\t%s\tTest %d:\tShould report an inconsistent ledger.", success, testID)
				}
			}

			t.Run(tst.name, f)
		}
	}
}
