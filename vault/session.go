package vault

import (
	"time"

	"github.com/rs/zerolog/log"
	"github.com/stellar/go/keypair"
)

// Session describes an unlocked wallet. The key material stays inside the vault.
type Session struct {
	WalletID   string
	PublicKey  string
	UnlockedAt time.Time
	ExpiresAt  time.Time
}

type unlocked struct {
	Session
	seed  [32]byte
	timer *time.Timer
}

func (u *unlocked) wipe() {
	if u.timer != nil {
		u.timer.Stop()
	}
	clear(u.seed[:])
}

func (v *Vault) startSession(walletID string, seed [32]byte) Session {
	now := v.now()

	v.mu.Lock()
	defer v.mu.Unlock()

	s := &unlocked{
		Session: Session{
			WalletID:   walletID,
			PublicKey:  walletID,
			UnlockedAt: now,
			ExpiresAt:  now.Add(v.autoLock),
		},
		seed: seed,
	}
	s.timer = time.AfterFunc(v.autoLock, func() {
		v.expire(walletID, s)
	})

	if prev, ok := v.sessions[walletID]; ok {
		prev.wipe()
	}
	v.sessions[walletID] = s
	return s.Session
}

func (v *Vault) expire(walletID string, s *unlocked) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.sessions[walletID] != s {
		return
	}
	delete(v.sessions, walletID)
	s.wipe()
	log.Debug().Str("wallet", walletID).Msg("session auto-locked")
}

// Session returns the live session for walletID
func (v *Vault) Session(walletID string) (Session, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()

	s, ok := v.live(walletID)
	if !ok {
		return Session{}, false
	}
	return s.Session, true
}

// live returns the session if it has not expired, dropping it otherwise.
// v.mu must be held.
func (v *Vault) live(walletID string) (*unlocked, bool) {
	s, ok := v.sessions[walletID]
	if !ok {
		return nil, false
	}
	if !v.now().Before(s.ExpiresAt) {
		delete(v.sessions, walletID)
		s.wipe()
		return nil, false
	}
	return s, true
}

// signer rebuilds the keypair from the cached seed
func (v *Vault) signer(walletID string) (*keypair.Full, bool) {
	var seed [32]byte
	defer clear(seed[:])

	v.mu.Lock()
	s, ok := v.live(walletID)
	if ok {
		seed = s.seed
	}
	v.mu.Unlock()
	if !ok {
		return nil, false
	}

	kp, err := keypair.FromRawSeed(seed)
	if err != nil {
		return nil, false
	}
	return kp, true
}

// Lock discards the session and zeroes its seed. Locking a locked wallet
// is a no-op.
func (v *Vault) Lock(walletID string) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if s, ok := v.sessions[walletID]; ok {
		delete(v.sessions, walletID)
		s.wipe()
	}
}

// LockAll locks every wallet
func (v *Vault) LockAll() {
	v.mu.Lock()
	defer v.mu.Unlock()

	for id, s := range v.sessions {
		delete(v.sessions, id)
		s.wipe()
	}
}

// SetAutoLock changes the window for sessions opened from now on
func (v *Vault) SetAutoLock(d time.Duration) {
	if d <= 0 {
		d = DefaultAutoLock
	}
	v.mu.Lock()
	v.autoLock = d
	v.mu.Unlock()
}

// AutoLock returns the current session window
func (v *Vault) AutoLock() time.Duration {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.autoLock
}
