package orderbot_test

import (
	"context"
	"fmt"
	"log"

	"github.com/aretw0/orderbot"
	"github.com/aretw0/orderbot/internal/testutils"
	"github.com/aretw0/orderbot/pkg/adapters/memory"
	"github.com/aretw0/orderbot/pkg/domain"
	"github.com/aretw0/orderbot/pkg/llm"
)

// ExampleNew runs a short conversation against a scripted model.
func ExampleNew() {
	catalog, err := memory.NewCatalog([]domain.MenuItem{
		{ID: 1, Title: "Phở", Price: 50000},
		{ID: 2, Title: "Bánh mì", Price: 20000, Discount: 0.1},
	})
	if err != nil {
		log.Fatal(err)
	}

	model := testutils.NewScriptedModel(
		testutils.Text("Chào Lan! Bánh mì đang giảm 10%."),
		testutils.Text(`{"intent":"BUY","item_id":2,"quantity":2}`),
		testutils.Text("Bạn muốn thêm gì nữa không?"),
		testutils.Text(`{"intent":"NOT_BUY","item_id":null,"quantity":null}`),
		testutils.Text("Cảm ơn bạn! Mời bạn đến giỏ hàng để thanh toán."),
	)

	eng := orderbot.New(catalog, model, orderbot.WithRetry(llm.NoRetry))
	ctx := context.Background()

	res, err := eng.Start(ctx, "session-1", "Lan", nil)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(res.Messages[0])

	for _, input := range []string{"cho mình 2 bánh mì", "đủ rồi"} {
		res, err = eng.Resume(ctx, "session-1", input, nil)
		if err != nil {
			log.Fatal(err)
		}
		fmt.Printf("[%s] %s\n", res.Intent, res.Messages[0])
	}
	fmt.Println(res.Status, domain.CartTotal(res.Cart))

	// Output:
	// Chào Lan! Bánh mì đang giảm 10%.
	// [BUY] Bạn muốn thêm gì nữa không?
	// [NOT_BUY] Cảm ơn bạn! Mời bạn đến giỏ hàng để thanh toán.
	// terminated 36000
}
