package level

import (
	"container/heap"
	"fmt"
)

// Поиск пути по глобальному графу уровня: A* с евклидовой эвристикой.
// Узлы — точки графа, стоимость ребра — его вес (длина).

type pathNode struct {
	id       int
	priority float64 // g + эвристика
	index    int
}

type pathQueue []*pathNode

func (pq pathQueue) Len() int { return len(pq) }

func (pq pathQueue) Less(i, j int) bool {
	if pq[i].priority != pq[j].priority {
		return pq[i].priority < pq[j].priority
	}
	return pq[i].id < pq[j].id
}

func (pq pathQueue) Swap(i, j int) {
	pq[i], pq[j] = pq[j], pq[i]
	pq[i].index = i
	pq[j].index = j
}

func (pq *pathQueue) Push(x any) {
	n := x.(*pathNode)
	n.index = len(*pq)
	*pq = append(*pq, n)
}

func (pq *pathQueue) Pop() any {
	old := *pq
	n := old[len(old)-1]
	old[len(old)-1] = nil
	*pq = old[:len(old)-1]
	return n
}

// Path ищет кратчайший путь между узлами графа.
// Возвращает последовательность идентификаторов узлов от from до to
// включительно, либо ошибку, если узлы лежат в несвязанных компонентах.
func (l *Level) Path(from, to int) ([]int, error) {
	if from < 0 || from >= len(l.points) || to < 0 || to >= len(l.points) {
		return nil, fmt.Errorf("level: path node out of range: %d -> %d (have %d nodes)", from, to, len(l.points))
	}
	if from == to {
		return []int{from}, nil
	}

	gScore := make(map[int]float64, len(l.points))
	cameFrom := make(map[int]int, len(l.points))
	inQueue := make(map[int]*pathNode)

	gScore[from] = 0
	start := &pathNode{id: from, priority: l.points[from].DistanceTo(l.points[to])}
	pq := pathQueue{start}
	inQueue[from] = start

	for pq.Len() > 0 {
		current := heap.Pop(&pq).(*pathNode)
		delete(inQueue, current.id)

		if current.id == to {
			return reconstructPath(cameFrom, from, to), nil
		}

		for _, next := range l.adjacency[current.id] {
			tentative := gScore[current.id] + l.points[current.id].DistanceTo(l.points[next])
			if known, ok := gScore[next]; ok && tentative >= known {
				continue
			}
			gScore[next] = tentative
			cameFrom[next] = current.id

			priority := tentative + l.points[next].DistanceTo(l.points[to])
			if n, ok := inQueue[next]; ok {
				n.priority = priority
				heap.Fix(&pq, n.index)
			} else {
				n := &pathNode{id: next, priority: priority}
				heap.Push(&pq, n)
				inQueue[next] = n
			}
		}
	}

	return nil, fmt.Errorf("level: no path between nodes %d and %d", from, to)
}

func reconstructPath(cameFrom map[int]int, from, to int) []int {
	var rev []int
	for id := to; ; {
		rev = append(rev, id)
		if id == from {
			break
		}
		id = cameFrom[id]
	}
	out := make([]int, len(rev))
	for i, id := range rev {
		out[len(rev)-1-i] = id
	}
	return out
}
