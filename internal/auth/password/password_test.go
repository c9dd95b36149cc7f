package password

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	dErrors "siaga/pkg/domain-errors"
)

// Cheap parameters keep the suite fast; production defaults are exercised once.
var testParams = Params{Memory: 64, Time: 1, Parallelism: 1, KeyLen: 32}

var testPolicy = Policy{
	MinLength:           8,
	RequireUpper:        true,
	RequireLower:        true,
	RequireDigit:        true,
	RequireSymbol:       true,
	ForbiddenSubstrings: []string{"password", "Siaga"},
}

type HasherSuite struct {
	suite.Suite
	hasher *Hasher
	ctx    context.Context
}

func TestHasherSuite(t *testing.T) {
	suite.Run(t, new(HasherSuite))
}

func (s *HasherSuite) SetupTest() {
	s.hasher = NewHasher(testParams, testPolicy, WithPool(NewPool(2, nil)))
	s.ctx = context.Background()
}

func (s *HasherSuite) TestRoundTrip() {
	phc, err := s.hasher.Hash(s.ctx, "Tr0ub4dor&3")
	s.Require().NoError(err)
	s.True(strings.HasPrefix(phc, "$argon2id$v=19$m=64,t=1,p=1$"))

	ok, err := s.hasher.Verify(s.ctx, "Tr0ub4dor&3", phc)
	s.Require().NoError(err)
	s.True(ok)

	ok, err = s.hasher.Verify(s.ctx, "Tr0ub4dor&4", phc)
	s.Require().NoError(err)
	s.False(ok, "a wrong password is false, not an error")
}

func (s *HasherSuite) TestSaltIsRandom() {
	a, err := s.hasher.Hash(s.ctx, "Tr0ub4dor&3")
	s.Require().NoError(err)
	b, err := s.hasher.Hash(s.ctx, "Tr0ub4dor&3")
	s.Require().NoError(err)
	s.NotEqual(a, b)
}

func (s *HasherSuite) TestWeakPasswords() {
	cases := map[string][]string{
		"Ab1!":         {ReasonTooShort},
		"alllower1!":   {ReasonMissingUpper},
		"ALLUPPER1!":   {ReasonMissingLower},
		"NoDigits!!":   {ReasonMissingDigit},
		"NoSymbol123":  {ReasonMissingSymbol},
		"MyPassword1!": {ReasonForbiddenSubstring},
		"siaga2026!A":  {ReasonForbiddenSubstring},
		"short":        {ReasonTooShort, ReasonMissingUpper, ReasonMissingDigit, ReasonMissingSymbol},
	}
	for pw, reasons := range cases {
		s.Run(pw, func() {
			phc, err := s.hasher.Hash(s.ctx, pw)
			s.Empty(phc, "a weak password never yields a hash")
			s.True(dErrors.HasCode(err, dErrors.CodeWeakPassword))
			s.Equal(reasons, dErrors.DetailsOf(err))
		})
	}
}

func (s *HasherSuite) TestMalformedHash() {
	for _, phc := range []string{
		"",
		"plaintext",
		"$2a$10$abcdefghijklmnopqrstuv",
		"$argon2i$v=19$m=64,t=1,p=1$c2FsdA$a2V5",
		"$argon2id$v=18$m=64,t=1,p=1$c2FsdA$a2V5",
		"$argon2id$v=19$m=64,t=1$c2FsdA$a2V5",
		"$argon2id$v=19$m=0,t=1,p=1$c2FsdA$a2V5",
		"$argon2id$v=19$m=64,t=1,p=1$!!$a2V5",
		"$argon2id$v=19$m=64,t=1,p=1$c2FsdA$",
	} {
		ok, err := s.hasher.Verify(s.ctx, "whatever", phc)
		s.False(ok)
		s.True(dErrors.HasCode(err, dErrors.CodeInternal), "hash %q", phc)
	}
}

func (s *HasherSuite) TestNeedsRehash() {
	phc, err := s.hasher.Hash(s.ctx, "Tr0ub4dor&3")
	s.Require().NoError(err)
	s.False(s.hasher.NeedsRehash(phc))

	stronger := NewHasher(Params{Memory: 128, Time: 2, Parallelism: 1, KeyLen: 32}, testPolicy)
	s.True(stronger.NeedsRehash(phc))
	s.True(stronger.NeedsRehash("garbage"))
}

func (s *HasherSuite) TestVerifyDummyDoesNotPanic() {
	s.hasher.VerifyDummy(s.ctx, "anything")
}

func TestDefaultParamsRoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("default argon2id parameters are slow")
	}
	phc, err := hashPHC(DefaultParams, "Tr0ub4dor&3")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(phc, "$argon2id$v=19$m=65536,t=3,p=1$"))
	ok, err := verifyPHC("Tr0ub4dor&3", phc)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestPoolBoundsConcurrency(t *testing.T) {
	pool := NewPool(2, nil)
	var running, peak atomic.Int32
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := pool.Do(context.Background(), func() {
				n := running.Add(1)
				for {
					p := peak.Load()
					if n <= p || peak.CompareAndSwap(p, n) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				running.Add(-1)
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestPoolHonoursCancellation(t *testing.T) {
	pool := NewPool(1, nil)
	release := make(chan struct{})
	started := make(chan struct{})
	go func() {
		_ = pool.Do(context.Background(), func() {
			close(started)
			<-release
		})
	}()
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := pool.Do(ctx, func() { t.Error("must not run") })
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	close(release)
}

func TestBlacklist(t *testing.T) {
	path := filepath.Join(t.TempDir(), "breached.txt")
	require.NoError(t, os.WriteFile(path, []byte("# common\nLetMeIn123!\n\n"), 0o600))

	bl, err := LoadBlacklist(path)
	require.NoError(t, err)
	assert.True(t, bl.Contains("letmein123!"))
	assert.False(t, bl.Contains("letmein"))

	var nilList *Blacklist
	assert.False(t, nilList.Contains("anything"))

	p := Policy{MinLength: 1, Blacklist: bl}
	assert.Equal(t, []string{ReasonBlacklisted}, p.Validate("LETMEIN123!"))
}
