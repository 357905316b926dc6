package wsync

import "sync"

type CheckedMap struct {
	owners map[string]interface{}
	l      sync.Mutex
}

func NewCheckedMap() *CheckedMap {
	return &CheckedMap{
		owners: make(map[string]interface{}),
	}
}

func (cm *CheckedMap) Lock(name string, owner interface{}) bool {
	cm.l.Lock()
	defer cm.l.Unlock()
	if _, ok := cm.owners[name]; ok {
		return false
	}
	cm.owners[name] = owner
	return true
}

func (cm *CheckedMap) Get(name string) (interface{}, bool) {
	cm.l.Lock()
	defer cm.l.Unlock()
	owner, ok := cm.owners[name]
	return owner, ok
}

func (cm *CheckedMap) Unlock(name string) {
	cm.l.Lock()
	defer cm.l.Unlock()
	delete(cm.owners, name)
}
