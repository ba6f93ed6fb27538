// Package fsm 提供单线程、可重入安全的有限状态机驱动
//
// 每次 Eval 持续调用分派函数直到状态不再变化；新状态的进入动作在同一次
// Eval 内执行。分派过程中再次调用 Eval 只会登记一次额外的求值。
package fsm

// Dispatcher 状态处理函数；entry 为 true 表示刚进入 current。
// 返回 noChange 表示保持当前状态。
type Dispatcher[S comparable] func(current S, entry bool) S

// Machine 状态机
type Machine[S comparable] struct {
	dispatch Dispatcher[S]
	noChange S
	current  S
	entry    bool

	evaluating bool
	again      bool
	onEnter    func(S)
}

// New 创建状态机，首次 Eval 时以 entry=true 分派 initial
func New[S comparable](initial, noChange S, dispatch Dispatcher[S]) *Machine[S] {
	return &Machine[S]{
		dispatch: dispatch,
		noChange: noChange,
		current:  initial,
		entry:    true,
	}
}

// OnEnter 注册状态进入回调（在进入动作之前调用）
func (m *Machine[S]) OnEnter(fn func(S)) {
	m.onEnter = fn
}

// Current 当前状态
func (m *Machine[S]) Current() S {
	return m.current
}

// Eval 求值直到稳定
func (m *Machine[S]) Eval() {
	if m.evaluating {
		m.again = true
		return
	}
	m.evaluating = true
	defer func() { m.evaluating = false }()

	if m.entry && m.onEnter != nil {
		m.onEnter(m.current)
	}
	for {
		m.again = false
		next := m.dispatch(m.current, m.entry)
		m.entry = false
		if next != m.noChange {
			m.current = next
			m.entry = true
			if m.onEnter != nil {
				m.onEnter(next)
			}
			continue
		}
		if !m.again {
			return
		}
	}
}
