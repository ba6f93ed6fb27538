package measurement

import "github.com/taoyao-code/fed3-node/internal/protocol/fed3"

// EventCapacity 每个上行周期最多缓存的事件数
const EventCapacity = 10

// EventRing 固定容量事件缓冲；满时淘汰最旧一条
type EventRing struct {
	items [EventCapacity]fed3.EventRecord
	count int
}

// Push 追加记录；缓冲已满时先丢弃下标 0 并整体前移，返回是否发生淘汰
func (r *EventRing) Push(rec fed3.EventRecord) bool {
	evicted := false
	if r.count > EventCapacity-1 {
		copy(r.items[:EventCapacity-1], r.items[1:])
		r.count = EventCapacity - 1
		evicted = true
	}
	r.items[r.count] = rec
	r.count++
	return evicted
}

// Len 有效条数
func (r *EventRing) Len() int { return r.count }

// At 按下标取记录，0 为最旧
func (r *EventRing) At(i int) (*fed3.EventRecord, bool) {
	if i < 0 || i >= r.count {
		return nil, false
	}
	return &r.items[i], true
}

// Reset 清空
func (r *EventRing) Reset() {
	*r = EventRing{}
}
